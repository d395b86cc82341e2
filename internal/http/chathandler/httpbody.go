package chathandler

type ErrorResponse struct {
	Error string `json:"error"`
} // @name ErrorResponse

type RoomMembersResponse struct {
	Room    string   `json:"room"`
	Members []string `json:"members"`
	Count   int      `json:"count"`
} // @name RoomMembersResponse

type HistoryQuery struct {
	Limit int `form:"limit,default=0" binding:"gte=0,lte=500"`
} // @name HistoryQuery
