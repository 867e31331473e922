package notify

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/mmeshcher/samshop/internal/model"
)

var rupiah = message.NewPrinter(language.Indonesian)

// FormatRupiah форматирует сумму в рупиях с разделителями разрядов.
func FormatRupiah(amount int64) string {
	return rupiah.Sprintf("Rp%d", amount)
}

func pendingMessage(c *model.Checkout) string {
	return fmt.Sprintf("Terima kasih! Pesanan Anda sedang diproses.\n\nOrder: %s\nTotal: %s\n\nSilakan selesaikan pembayaran Anda.\n\nSamShop",
		c.ID, FormatRupiah(c.Total))
}

func paidMessage(c *model.Checkout, p *model.Payment) string {
	amount := p.Amount
	if p.PaidAmount != nil {
		amount = *p.PaidAmount
	}

	method := p.PaymentChannel
	if method == "" || method == model.UnknownPaymentMethod {
		method = p.PaymentMethod
	}

	return fmt.Sprintf("Pembayaran Berhasil!\n\nOrder: %s\nTotal Dibayar: %s\nMetode: %s\n\nPembayaran telah dikonfirmasi, pesanan sedang diproses.\n\nSamShop",
		c.ID, FormatRupiah(amount), method)
}
