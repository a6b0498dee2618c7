package telegram

import (
	"fmt"
	"html"
	"strings"

	"github.com/asarvarbek/tgshop-backend/internal/domain"
)

func formatOrderNotification(order domain.Order) string {
	buyer := "Foydalanuvchi: Noma'lum"
	if order.User != nil {
		buyer = fmt.Sprintf(`Foydalanuvchi: <a href="tg://user?id=%d">%s</a>`,
			order.User.ID, html.EscapeString(order.User.FirstName))
	}

	return fmt.Sprintf("🆕 Yangi buyurtma qabul qilindi!\n%s\n\n%s\n\n💰 Umumiy: $%.2f",
		buyer, formatOrderLines(order.Items), order.Total)
}

func formatOrderLines(items []domain.CartItem) string {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = fmt.Sprintf("- %s x%d = $%.2f", item.Name, item.Quantity, item.Price*float64(item.Quantity))
	}
	return strings.Join(lines, "\n")
}

func formatOrderSummary(order domain.Order) string {
	buyer := "Noma'lum"
	if order.User != nil {
		buyer = order.User.FirstName
	}

	return fmt.Sprintf("📦 Buyurtma: %s\n👤 Xaridor: %s\n📅 Vaqti: %s\n🛍️ Mahsulotlar:\n%s\n💰 Jami: $%.2f\n📊 Status: %s",
		order.ID, buyer, order.CreatedAt.Format("02.01.2006 15:04"),
		formatOrderLines(order.Items), order.Total, order.Status)
}

func formatProductList(products []domain.Product) string {
	var b strings.Builder
	b.WriteString("🏪 Mahsulotlar ro'yxati:\n\n")
	for _, p := range products {
		fmt.Fprintf(&b, "📦 %s\n💰 Narxi: $%g\n📝 ID: %d\n➖➖➖➖➖➖\n", p.Name, p.Price, p.ID)
	}
	return b.String()
}
