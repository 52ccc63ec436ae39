package core

import (
	"strings"
	"unicode/utf8"
)

// Validation messages are returned to the caller verbatim.
const (
	MsgCodeEmpty        = "コードが入力されていませんっピ"
	MsgCodeTooLong      = "コードが長すぎますっピ（最大50,000文字）"
	MsgFileNameEmpty    = "ファイル名が入力されていませんっピ"
	MsgLanguageEmpty    = "プログラミング言語が指定されていませんっピ"
	MsgMessageEmpty     = "メッセージが入力されていませんっピ"
	MsgMessageTooLong   = "メッセージが長すぎますっピ（最大2,000文字）"
	MsgReviewEmpty      = "レビュー内容が入力されていませんっピ"
	MsgQuestionEmpty    = "質問が入力されていませんっピ"
	MsgQuestionTooLong  = "質問が長すぎますっピ（最大2,000文字）"
	MsgOriginalEmpty    = "元のコードが入力されていませんっピ"
	MsgOriginalTooLong  = "元のコードが長すぎますっピ（最大50,000文字）"
	MsgImprovedEmpty    = "改善後のコードが入力されていませんっピ"
	MsgImprovedTooLong  = "改善後のコードが長すぎますっピ（最大50,000文字）"
	ValidationSeparator = "、"
)

// ValidateReview checks a review request. Every violated rule is reported.
func ValidateReview(req ReviewRequest) []string {
	var errs []string
	if isBlank(req.Code) {
		errs = append(errs, MsgCodeEmpty)
	}
	if tooLong(req.Code, MaxCodeLength) {
		errs = append(errs, MsgCodeTooLong)
	}
	if isBlank(req.FileName) {
		errs = append(errs, MsgFileNameEmpty)
	}
	if isBlank(req.Language) {
		errs = append(errs, MsgLanguageEmpty)
	}
	return errs
}

// ValidateConsultation checks a consultation request.
func ValidateConsultation(req ConsultationRequest) []string {
	var errs []string
	if isBlank(req.Message) {
		errs = append(errs, MsgMessageEmpty)
	}
	if tooLong(req.Message, MaxMessageLength) {
		errs = append(errs, MsgMessageTooLong)
	}
	return errs
}

// ValidateFollowUp checks a follow-up question about an earlier review.
func ValidateFollowUp(req FollowUpRequest) []string {
	var errs []string
	if isBlank(req.Code) {
		errs = append(errs, MsgCodeEmpty)
	}
	if tooLong(req.Code, MaxCodeLength) {
		errs = append(errs, MsgCodeTooLong)
	}
	if isBlank(req.Review) {
		errs = append(errs, MsgReviewEmpty)
	}
	if isBlank(req.Question) {
		errs = append(errs, MsgQuestionEmpty)
	}
	if tooLong(req.Question, MaxMessageLength) {
		errs = append(errs, MsgQuestionTooLong)
	}
	return errs
}

// ValidateComparison checks a before/after comparison request.
func ValidateComparison(req ComparisonRequest) []string {
	var errs []string
	if isBlank(req.OriginalCode) {
		errs = append(errs, MsgOriginalEmpty)
	}
	if tooLong(req.OriginalCode, MaxCodeLength) {
		errs = append(errs, MsgOriginalTooLong)
	}
	if isBlank(req.ImprovedCode) {
		errs = append(errs, MsgImprovedEmpty)
	}
	if tooLong(req.ImprovedCode, MaxCodeLength) {
		errs = append(errs, MsgImprovedTooLong)
	}
	if isBlank(req.FileName) {
		errs = append(errs, MsgFileNameEmpty)
	}
	if isBlank(req.Language) {
		errs = append(errs, MsgLanguageEmpty)
	}
	return errs
}

// JoinValidation renders validation errors as a single message.
func JoinValidation(errs []string) string {
	return strings.Join(errs, ValidationSeparator)
}

// CharCount counts characters (code points), not bytes.
func CharCount(s string) int {
	return utf8.RuneCountInString(s)
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func tooLong(s string, limit int) bool {
	return CharCount(s) > limit
}
