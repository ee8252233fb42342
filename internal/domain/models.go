package domain

import "time"

type AvailabilityWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type Product struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Category      string              `json:"category"`
	PriceCents    int64               `json:"price_cents"`
	UnitCostCents int64               `json:"unit_cost_cents"`
	Quantity      int                 `json:"quantity"`
	FirstWindow   *AvailabilityWindow `json:"first_window,omitempty"`
	SecondWindow  *AvailabilityWindow `json:"second_window,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

type ProductCreateRequest struct {
	Name          string              `json:"name"`
	Category      string              `json:"category"`
	PriceCents    int64               `json:"price_cents"`
	UnitCostCents int64               `json:"unit_cost_cents"`
	Quantity      int                 `json:"quantity"`
	FirstWindow   *AvailabilityWindow `json:"first_window,omitempty"`
	SecondWindow  *AvailabilityWindow `json:"second_window,omitempty"`
}

type ProductUpdateRequest struct {
	Name          *string             `json:"name,omitempty"`
	Category      *string             `json:"category,omitempty"`
	PriceCents    *int64              `json:"price_cents,omitempty"`
	UnitCostCents *int64              `json:"unit_cost_cents,omitempty"`
	Quantity      *int                `json:"quantity,omitempty"`
	FirstWindow   *AvailabilityWindow `json:"first_window,omitempty"`
	SecondWindow  *AvailabilityWindow `json:"second_window,omitempty"`
	ClearWindows  bool                `json:"clear_windows,omitempty"`
}

// ProductView is a catalog product decorated with the availability verdict
// for the moment the list was served.
type ProductView struct {
	Product
	Available bool     `json:"available"`
	Warnings  []string `json:"warnings,omitempty"`
}

type ProductListResponse struct {
	Products []ProductView `json:"products"`
}

type ProductResponse struct {
	Product  Product  `json:"product"`
	Warnings []string `json:"warnings,omitempty"`
}

type CategoryStats struct {
	Category   string `json:"category"`
	Total      int    `json:"total"`
	LowStock   int    `json:"low_stock"`
	OutOfStock int    `json:"out_of_stock"`
}

type CategoryStatsResponse struct {
	Stats []CategoryStats `json:"stats"`
}

type BulkCategoryRequest struct {
	ProductIDs []string `json:"product_ids"`
	Category   string   `json:"category"`
}

type BulkCategoryResponse struct {
	Updated int `json:"updated"`
}

type CartLine struct {
	ProductID  string `json:"product_id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Quantity   int    `json:"quantity"`
}

type CartResponse struct {
	Lines      []CartLine `json:"lines"`
	TotalCents int64      `json:"total_cents"`
	ItemCount  int        `json:"item_count"`
}

type CartAddRequest struct {
	ProductID string `json:"product_id"`
}

type SaleLineProduct struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
}

// SaleLine is a frozen snapshot: later catalog edits never change it.
type SaleLine struct {
	Product  SaleLineProduct `json:"product"`
	Quantity int             `json:"quantity"`
}

type Sale struct {
	ID            string     `json:"id"`
	EmployeeID    string     `json:"employee_id"`
	Items         []SaleLine `json:"items"`
	TotalCents    int64      `json:"total_cents"`
	PaymentMethod string     `json:"payment_method"`
	CreatedAt     time.Time  `json:"created_at"`
}

type SaleCreateRequest struct {
	PaymentMethod string `json:"payment_method"`
}

type SaleResponse struct {
	Sale Sale `json:"sale"`
}

type SaleListResponse struct {
	Sales []Sale `json:"sales"`
}

// StockDelta is the quantity a settlement removes from one product.
type StockDelta struct {
	ProductID string
	Quantity  int
}

// Settlement is the pure outcome of completing a sale: the record to persist,
// the stock to remove, and the register movement (zero for school-cash).
type Settlement struct {
	Sale               Sale
	StockDeltas        []StockDelta
	RegisterDeltaCents int64
}

type CashRegister struct {
	ID            string    `json:"id"`
	CurrentCents  int64     `json:"current_cents"`
	StartingCents int64     `json:"starting_cents"`
	UpdatedAt     time.Time `json:"updated_at"`
	UpdatedBy     string    `json:"updated_by"`
}

type RegisterResponse struct {
	Register CashRegister `json:"register"`
}

type RegisterOpenRequest struct {
	StartingCents int64 `json:"starting_cents"`
}

type RegisterCloseRequest struct {
	CountedCents int64 `json:"counted_cents"`
}

type RegisterAdjustRequest struct {
	CurrentCents int64 `json:"current_cents"`
}

type LoginRequest struct {
	EmployeeID string `json:"employee_id"`
	Password   string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	EmployeeID string
	Role       string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	EmployeeID string
	Password   string
	Role       string
	Active     bool
	CreatedAt  time.Time
}

type EmployeeCreateRequest struct {
	EmployeeID string `json:"employee_id"`
	Password   string `json:"password"`
	Role       string `json:"role"`
	ManagerPIN string `json:"manager_pin"`
}

type EmployeeUser struct {
	EmployeeID string    `json:"employee_id"`
	Role       string    `json:"role"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}

type PaymentBreakdown struct {
	AmountCents  int64 `json:"amount_cents"`
	Transactions int   `json:"transactions"`
}

type ProductRollup struct {
	Name         string `json:"name"`
	Quantity     int    `json:"quantity"`
	RevenueCents int64  `json:"revenue_cents"`
	CostCents    int64  `json:"cost_cents"`
	ProfitCents  int64  `json:"profit_cents"`
}

type SaleSummary struct {
	Sale        Sale  `json:"sale"`
	ProfitCents int64 `json:"profit_cents"`
}

type ReportSummary struct {
	Period              string           `json:"period"`
	GeneratedAt         string           `json:"generated_at"`
	TotalSalesCents     int64            `json:"total_sales_cents"`
	Transactions        int              `json:"transactions"`
	AvgTransactionCents int64            `json:"avg_transaction_cents"`
	Cash                PaymentBreakdown `json:"cash"`
	SchoolCash          PaymentBreakdown `json:"school_cash"`
	HasCostData         bool             `json:"has_cost_data"`
	TotalCostCents      int64            `json:"total_cost_cents"`
	TotalProfitCents    int64            `json:"total_profit_cents"`
	ProfitMarginPct     float64          `json:"profit_margin_pct"`
	AvgProfitCents      int64            `json:"avg_profit_cents"`
	CostRatioPct        float64          `json:"cost_ratio_pct"`
	TopSelling          []ProductRollup  `json:"top_selling"`
	MostProfitable      []ProductRollup  `json:"most_profitable"`
	RecentSales         []SaleSummary    `json:"recent_sales"`
	RegisterCurrent     int64            `json:"register_current_cents"`
	RegisterStarting    int64            `json:"register_starting_cents"`
}

type MonthlyResetRequest struct {
	ManagerPIN string `json:"manager_pin"`
}

type MonthlyResetResponse struct {
	SalesDeleted int    `json:"sales_deleted"`
	ResetAt      string `json:"reset_at"`
}

type AuditLog struct {
	ID         string    `json:"id"`
	ActorID    string    `json:"actor_id"`
	ActorRole  string    `json:"actor_role"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"created_at"`
}

type AuditListResponse struct {
	Items []AuditLog `json:"items"`
}

const (
	PaymentCash       = "cash"
	PaymentSchoolCash = "school-cash"
)

const (
	CategoryChips  = "chips"
	CategoryDrinks = "drinks"
	CategoryCandy  = "candy"
	CategoryOther  = "other"
)

const (
	RoleGeneral = "general"
	RoleOpener  = "opener"
	RoleCloser  = "closer"
)

const (
	PeriodToday = "today"
	PeriodWeek  = "week"
	PeriodMonth = "month"
)

// MonthlyResetActor is recorded as the register's updated_by after a reset.
const MonthlyResetActor = "monthly_reset"

func Categories() []string {
	return []string{CategoryChips, CategoryDrinks, CategoryCandy, CategoryOther}
}

func ValidCategory(c string) bool {
	switch c {
	case CategoryChips, CategoryDrinks, CategoryCandy, CategoryOther:
		return true
	}
	return false
}

func ValidPaymentMethod(m string) bool {
	return m == PaymentCash || m == PaymentSchoolCash
}
