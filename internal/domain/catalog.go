package domain

import "time"

// AttributeValue is one product_attributes row for a given key.
type AttributeValue struct {
	ProductID int64  `json:"product_id"`
	Value     string `json:"attribute_value"`
}

// SizeRow is an in-stock product_sizes row with its ranges parsed.
type SizeRow struct {
	SizeCode     string `json:"size_code"`
	HeightMin    int    `json:"height_min"`
	HeightMax    int    `json:"height_max"`
	WeightMin    int    `json:"weight_min"`
	WeightMax    int    `json:"weight_max"`
	Length       string `json:"length,omitempty"`
	SleeveLength string `json:"sleeve_length,omitempty"`
	Bust         string `json:"bust,omitempty"`
	Waist        string `json:"waist,omitempty"`
	Hip          string `json:"hip,omitempty"`
	BottomHem    string `json:"bottom_hem,omitempty"`
}

// EscalationTicket is the structured hand-off record for a human agent.
type EscalationTicket struct {
	ID          string
	ThreadID    string
	UserQuery   string
	ProblemType Intent
	OrderID     string
	ProductID   string
	Summary     string
	CreatedAt   time.Time
}
