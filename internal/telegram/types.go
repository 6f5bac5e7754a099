package telegram

import tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

// Update is an incoming webhook payload. Only inline queries are consumed.
type Update = tgbotapi.Update

// InlineQuery is a user typing "@bot <query>" in any chat.
type InlineQuery = tgbotapi.InlineQuery

// Result types for inline answers backed by already-uploaded files.
const (
	ResultTypePhoto = "photo"
	ResultTypeGIF   = "gif"
)

// InlineQueryResult covers InlineQueryResultCachedPhoto and
// InlineQueryResultCachedGif; exactly one file id field is set.
type InlineQueryResult struct {
	Type        string
	ID          string
	PhotoFileID string
	GIFFileID   string
	Title       string
	Caption     string
}

func (r InlineQueryResult) sdkResult() any {
	if r.Type == ResultTypeGIF {
		res := tgbotapi.NewInlineQueryResultCachedGIF(r.ID, r.GIFFileID)
		res.Title = r.Title
		res.Caption = r.Caption
		return res
	}
	res := tgbotapi.NewInlineQueryResultCachedPhoto(r.ID, r.PhotoFileID)
	res.Title = r.Title
	res.Caption = r.Caption
	return res
}

// AnswerOptions are the answerInlineQuery parameters besides the results.
type AnswerOptions struct {
	CacheTime  int
	IsPersonal bool
	NextOffset string
}
