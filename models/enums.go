package models

type LessonType string

const (
	LessonTypeNormal      LessonType = "Normal"
	LessonTypeTrial       LessonType = "Trial"
	LessonTypePostpone    LessonType = "Postpone"
	LessonTypeCancelled   LessonType = "Cancelled"
	LessonTypeUnconfirmed LessonType = "Unconfirmed"
)

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusDeclined RequestStatus = "declined"
)
