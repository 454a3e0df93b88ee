package dto

type SetStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active suspended deleted" example:"active"`
}
