package models

import "time"

// SaleStatus is the lifecycle state of a sale.
type SaleStatus string

const (
	SaleUpcoming  SaleStatus = "upcoming"
	SaleActive    SaleStatus = "active"
	SaleCompleted SaleStatus = "completed"
)

// ActiveSaleStatuses are the statuses synced by the priority bootstrap.
var ActiveSaleStatuses = []SaleStatus{SaleUpcoming, SaleActive}

type Company struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Sale struct {
	ID        string     `json:"id"`
	CompanyID string     `json:"company_id"`
	Name      string     `json:"name"`
	Status    SaleStatus `json:"status"`
	Location  string     `json:"location,omitempty"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Lot is a catalogued item of a sale. LotNumber is negative while the lot
// carries a temporary number assigned offline.
type Lot struct {
	ID           string    `json:"id"`
	SaleID       string    `json:"sale_id"`
	LotNumber    int64     `json:"lot_number"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	CategoryID   string    `json:"category_id,omitempty"`
	EstimateLow  float64   `json:"estimate_low,omitempty"`
	EstimateHigh float64   `json:"estimate_high,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Contact struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"company_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Role      string    `json:"role,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Document struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"company_id"`
	SaleID    string    `json:"sale_id,omitempty"`
	Title     string    `json:"title"`
	FilePath  string    `json:"file_path,omitempty"`
	MimeType  string    `json:"mime_type,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Category is a lookup row used to classify lots.
type Category struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"company_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
