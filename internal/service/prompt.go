package service

import (
	"strings"

	"github.com/moneyflow/moneyflow-go/internal/domain"
)

// BuildExtractionPrompt assembles the single-shot extraction prompt: the
// user's wallet and category names, the fixed line grammar the extractors
// expect, the placeholder rules for missing fields, an instruction to
// answer conversationally when the message holds no transaction, and the
// raw message.
func BuildExtractionPrompt(message string, wallets []domain.Wallet, categories []domain.Category) string {
	walletNames := make([]string, 0, len(wallets))
	for _, w := range wallets {
		walletNames = append(walletNames, w.Name)
	}
	categoryNames := make([]string, 0, len(categories))
	for _, c := range categories {
		categoryNames = append(categoryNames, c.Name)
	}

	var b strings.Builder
	b.WriteString("Danh sách ví: [")
	b.WriteString(strings.Join(walletNames, ", "))
	b.WriteString("]. Danh sách danh mục: [")
	b.WriteString(strings.Join(categoryNames, ", "))
	b.WriteString("]. Phân tích câu sau và trích xuất tất cả giao dịch: ")
	b.WriteString("số tiền, ngày giao dịch, ví, danh mục, loại, mô tả. ")
	b.WriteString("Mỗi giao dịch trả về trên một dòng, đúng định dạng: ")
	b.WriteString("'số tiền: [số tiền], ngày giao dịch: [dd/MM/yyyy], ví: [tên ví], ")
	b.WriteString("danh mục: [tên danh mục], loại: [income|expense|unknown], mô tả: [mô tả]'. ")
	b.WriteString("Nếu không xác định được ví, dùng 'UnknownWallet'. ")
	b.WriteString("Nếu không xác định được danh mục, dùng 'chi tiêu khác'. ")
	b.WriteString("Nếu không chắc giao dịch là thu hay chi, dùng loại 'unknown'. ")
	b.WriteString("Nếu câu không chứa giao dịch nào, hãy trả lời tự nhiên như một cuộc trò chuyện. ")
	b.WriteString("Câu: '")
	b.WriteString(message)
	b.WriteString("'")
	return b.String()
}
