package core

// PersonaMessages holds the user-facing error strings for one endpoint family.
type PersonaMessages struct {
	RateLimited   string
	NotConfigured string
	Auth          string
	Quota         string
	Timeout       string
	Failure       string
}

var reviewMessages = PersonaMessages{
	RateLimited:   "レート制限に達しましたっピ。1時間後に再試行してくださいっピ",
	NotConfigured: "AIサービスの設定に問題がありますっピ",
	Auth:          "AIサービスの認証に問題がありますっピ",
	Quota:         "AIサービスの利用制限に達しましたっピ。しばらく待ってから再試行してくださいっピ",
	Timeout:       "レビュー生成がタイムアウトしましたっピ。もう一度試してくださいっピ",
	Failure:       "レビュー生成中にエラーが発生しましたっピ",
}

var consultationMessages = PersonaMessages{
	RateLimited:   "ちょっと待ってねっピ。1時間後にまた相談に乗るっピ",
	NotConfigured: "タコピーが少し調子悪いっピ。また後で話しかけてねっピ",
	Auth:          "タコピーがハッピー星との通信でトラブってるっピ。でも心配しないでっピ！",
	Quota:         "タコピーがちょっと忙しすぎちゃったっピ。少し休んでからまた相談に乗るっピ！",
	Timeout:       "タコピーが考えすぎちゃったっピ。もう一回話しかけてねっピ！",
	Failure:       "タコピーが少し疲れちゃったっピ。でも大丈夫、すぐに元気になるっピ！",
}

// Messages returns the persona strings for a category.
func Messages(c Category) PersonaMessages {
	if c == CategoryConsultation {
		return consultationMessages
	}
	return reviewMessages
}

// Service-level persona strings not tied to a category.
const (
	MsgMethodNotAllowed = "メソッドが許可されていませんっピ"
	MsgNotFound         = "ページが見つからないっピ"
	MsgInvalidJSON      = "リクエストの形式が正しくないっピ"
	MsgHealthy          = "タコピーのサービスは正常に動作していますっピ！"
	MsgUnhealthy        = "サービスに問題が発生していますっピ"
)
