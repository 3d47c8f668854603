package api

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"
)

var supportedLanguages = []language.Tag{
	language.English, // first entry is the fallback
	language.Vietnamese,
}

var languageMatcher = language.NewMatcher(supportedLanguages)

// vietnameseMessages translates error codes for clients asking for Vietnamese
var vietnameseMessages = map[string]string{
	"missing_fields":            "Thiếu tên hoặc mật khẩu",
	"name_too_long":             "Tên quá dài",
	"duplicate_name":            "Tên đã tồn tại, chọn tên khác",
	"user_not_found":            "Không tìm thấy tài khoản",
	"wrong_password":            "Sai mật khẩu",
	"unauthorized":              "Chưa đăng nhập",
	"session_invalid":           "Phiên đăng nhập không hợp lệ",
	"invalid_amount":            "Số tiền không hợp lệ",
	"label_too_long":            "Tên trò chơi quá dài",
	"empty_receiver":            "Vui lòng nhập tên hoặc ID người nhận",
	"invalid_idempotency_key":   "Mã chống trùng lặp không hợp lệ",
	"self_transfer":             "Không thể tự chuyển tiền",
	"receiver_not_found":        "Người nhận không tồn tại",
	"insufficient_funds":        "Số dư không đủ",
	"idempotency_key_reused":    "Mã chống trùng lặp đã được dùng cho giao dịch cũ",
	"idempotency_key_mismatch":  "Mã chống trùng lặp đã được dùng cho giao dịch khác",
	"duplicate_idempotency_key": "Giao dịch đang được xử lý",
	"transaction_failed":        "Giao dịch lỗi",
	"invalid_json":              "Dữ liệu JSON không hợp lệ",
	"invalid_query":             "Yêu cầu không hợp lệ",
	"not_found":                 "Không tìm thấy",
}

// preferredLanguage picks the best supported language from the Accept-Language header
func preferredLanguage(c *gin.Context) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(c.GetHeader("Accept-Language"))
	if err != nil || len(tags) == 0 {
		return language.English
	}
	_, index, _ := languageMatcher.Match(tags...)
	return supportedLanguages[index]
}

// localize returns the message for code in the caller's language, falling back to the English text
func localize(c *gin.Context, code, english string) string {
	if preferredLanguage(c) == language.Vietnamese {
		if msg, ok := vietnameseMessages[code]; ok {
			return msg
		}
	}
	return english
}
