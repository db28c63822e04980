package models

// User-facing messages. The marketplace audience is Russian-speaking.
const (
	MsgProductUnavailable = "Товар недоступен"
	MsgProductNotFound    = "Товар не найден"
	MsgCommentNotFound    = "Комментарий не найден"
	MsgReplyRequired      = "Комментарий должен быть ответом на отзыв"
	MsgContentRequired    = "Текст отзыва обязателен"
	MsgContentTooLong     = "Текст отзыва слишком длинный"
	MsgRatingOutOfRange   = "Оценка должна быть от 0 до 5"
	MsgNotAuthenticated   = "Пользователь не авторизован"
	MsgAdminRequired      = "Требуются права администратора"
	MsgInvalidID          = "Некорректный идентификатор"
	MsgInvalidBody        = "Некорректное тело запроса"
	MsgNotPending         = "Комментарий не ожидает модерации"
	MsgTooManyRequests    = "Слишком много запросов, попробуйте позже"
	MsgInternal           = "Внутренняя ошибка сервера"
)
