package models

// MessageVariant is a quiz-style message delivered as a notification and
// opened as a chat quiz when tapped.
type MessageVariant struct {
	ID            string   `json:"id"`
	Text          string   `json:"text"`
	AudienceTags  []string `json:"audienceTags"`
	DecoyAnswers  []string `json:"decoyAnswers"`
	CorrectAnswer string   `json:"correctAnswer"`
	Explanation   string   `json:"explanation"`
}

// HasTag reports whether the message is eligible for the audience tag.
func (m MessageVariant) HasTag(tag string) bool {
	for _, t := range m.AudienceTags {
		if t == tag {
			return true
		}
	}
	return false
}

// MilestoneMessage is the hand-written celebration for a specific streak day.
type MilestoneMessage struct {
	Day          int    `json:"day"`
	Emoji        string `json:"emoji"`
	Title        string `json:"title"`
	Message      string `json:"message"`
	Notification string `json:"notification"`
}

// GenericStreakTemplate is used for days without a milestone. Title, Message
// and Notification carry the StreakPlaceholder token.
type GenericStreakTemplate struct {
	Emoji        string `json:"emoji"`
	Title        string `json:"title"`
	Message      string `json:"message"`
	Notification string `json:"notification"`
}

// StreakPlaceholder is replaced with the streak number when a template is rendered.
const StreakPlaceholder = "{streak}"

// Celebration is the resolved content shown for a streak day.
type Celebration struct {
	Day              int    `json:"day"`
	Emoji            string `json:"emoji"`
	Title            string `json:"title"`
	Body             string `json:"body"`
	NotificationBody string `json:"notification_body"`
}
