// Package allbranches produces reporting rollups spanning every
// provisioned branch database.
package allbranches

import (
	"context"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	obsmetrics "github.com/smallbiznis/tindahan/internal/observability/metrics"
	posdomain "github.com/smallbiznis/tindahan/internal/pos/domain"
	storedomain "github.com/smallbiznis/tindahan/internal/store/domain"
	dbpkg "github.com/smallbiznis/tindahan/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Each branch contributes at most this many detail rows to a merged
// list, bounding total result size.
const branchRowLimit = 100

const defaultBranchTimeout = 10 * time.Second

// MainBranchID tags rows originating from the main database.
const MainBranchID = "main"

// Opener provides the transient per-branch connections the aggregator
// uses. At most one is open at a time and each is closed before the
// next branch is queried.
type Opener interface {
	OpenTransient(ctx context.Context, store *storedomain.Store) (*gorm.DB, error)
}

type Service struct {
	db      *gorm.DB
	stores  storedomain.Repository
	opener  Opener
	timeout time.Duration
	log     *zap.Logger
	metrics *obsmetrics.Metrics
}

func NewService(
	db *gorm.DB,
	stores storedomain.Repository,
	opener Opener,
	timeout time.Duration,
	log *zap.Logger,
	metrics *obsmetrics.Metrics,
) *Service {
	if timeout <= 0 {
		timeout = defaultBranchTimeout
	}
	return &Service{
		db:      db,
		stores:  stores,
		opener:  opener,
		timeout: timeout,
		log:     log.Named("allbranches"),
		metrics: metrics,
	}
}

// BranchStats is one branch's contribution to the dashboard rollup.
type BranchStats struct {
	Branch       string  `json:"branch"`
	BranchID     string  `json:"branch_id"`
	Sales        float64 `json:"sales"`
	Purchases    float64 `json:"purchases"`
	Products     int64   `json:"products"`
	Customers    int64   `json:"customers"`
	Transactions int64   `json:"transactions"`
}

// DashboardStats is the cross-branch rollup.
type DashboardStats struct {
	TotalSales        float64       `json:"total_sales"`
	TotalPurchases    float64       `json:"total_purchases"`
	TotalProducts     int64         `json:"total_products"`
	TotalCustomers    int64         `json:"total_customers"`
	TotalTransactions int64         `json:"total_transactions"`
	BranchCount       int           `json:"branch_count"`
	BranchStats       []BranchStats `json:"branch_stats"`
}

// DashboardStats aggregates the main database first, then every active
// provisioned branch through a transient connection. A branch that
// fails is logged and skipped; it contributes zero, never aborts the
// rollup.
func (s *Service) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	result := &DashboardStats{BranchStats: []BranchStats{}}

	mainStats, err := s.collectStats(ctx, s.db)
	if err != nil {
		return nil, err
	}
	mainStats.Branch = "Main Branch"
	mainStats.BranchID = MainBranchID
	result.add(mainStats)

	branches, err := s.provisionedBranches(ctx)
	if err != nil {
		return nil, err
	}

	for i := range branches {
		branch := &branches[i]
		stats, err := s.collectBranchStats(ctx, branch)
		if err != nil {
			s.skip(branch, "dashboard_stats", err)
			continue
		}
		stats.Branch = branch.Name
		stats.BranchID = branch.ID.String()
		result.add(stats)
	}

	return result, nil
}

// SaleRow is one sale tagged with its originating branch.
type SaleRow struct {
	ID          snowflake.ID `json:"id"`
	Date        time.Time    `json:"date"`
	TotalAmount float64      `json:"total_amount"`
	PaidAmount  float64      `json:"paid_amount"`
	DueAmount   float64      `json:"due_amount"`
	CreatedAt   time.Time    `json:"created_at"`
	Branch      string       `json:"branch"`
	BranchID    string       `json:"branch_id"`
}

// AllSales merges recent sales across branches, newest first. Each
// branch contributes at most branchRowLimit rows.
func (s *Service) AllSales(ctx context.Context, start, end *time.Time) ([]SaleRow, error) {
	rows, err := s.mainSales(ctx, start, end)
	if err != nil {
		return nil, err
	}

	branches, err := s.provisionedBranches(ctx)
	if err != nil {
		return nil, err
	}

	for i := range branches {
		branch := &branches[i]
		branchRows, err := s.branchSales(ctx, branch, start, end)
		if err != nil {
			s.skip(branch, "all_sales", err)
			continue
		}
		rows = append(rows, branchRows...)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Date.After(rows[j].Date) })
	return rows, nil
}

// TransactionRow is one transaction tagged with its originating branch.
type TransactionRow struct {
	ID          snowflake.ID `json:"id"`
	Date        time.Time    `json:"date"`
	Amount      float64      `json:"amount"`
	Type        string       `json:"type"`
	Particulars string       `json:"particulars"`
	CreatedAt   time.Time    `json:"created_at"`
	Branch      string       `json:"branch"`
	BranchID    string       `json:"branch_id"`
}

// AllTransactions merges recent transactions across branches, newest
// first.
func (s *Service) AllTransactions(ctx context.Context, start, end *time.Time) ([]TransactionRow, error) {
	rows, err := s.mainTransactions(ctx, start, end)
	if err != nil {
		return nil, err
	}

	branches, err := s.provisionedBranches(ctx)
	if err != nil {
		return nil, err
	}

	for i := range branches {
		branch := &branches[i]
		branchRows, err := s.branchTransactions(ctx, branch, start, end)
		if err != nil {
			s.skip(branch, "all_transactions", err)
			continue
		}
		rows = append(rows, branchRows...)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Date.After(rows[j].Date) })
	return rows, nil
}

// provisionedBranches lists the non-main branches the aggregator visits:
// active, with a dedicated database. Branches sharing the main database
// are already counted in the main numbers by their scoping key.
func (s *Service) provisionedBranches(ctx context.Context) ([]storedomain.Store, error) {
	stores, err := s.stores.List(ctx, storedomain.ListFilter{ActiveOnly: true, ProvisionedOnly: true})
	if err != nil {
		return nil, err
	}

	branches := stores[:0]
	for _, candidate := range stores {
		if !candidate.IsMainStore {
			branches = append(branches, candidate)
		}
	}
	return branches, nil
}

// withBranch runs fn against a transient connection to one branch,
// closing the connection before returning so connections never
// accumulate.
func (s *Service) withBranch(ctx context.Context, branch *storedomain.Store, fn func(ctx context.Context, conn *gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	conn, err := s.opener.OpenTransient(ctx, branch)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := dbpkg.Close(conn); closeErr != nil {
			s.log.Warn("closing branch connection failed",
				zap.String("branch_id", branch.ID.String()),
				zap.Error(closeErr),
			)
		}
	}()

	return fn(ctx, conn)
}

func (s *Service) collectBranchStats(ctx context.Context, branch *storedomain.Store) (BranchStats, error) {
	var stats BranchStats
	err := s.withBranch(ctx, branch, func(ctx context.Context, conn *gorm.DB) error {
		collected, err := s.collectStats(ctx, conn)
		if err != nil {
			return err
		}
		stats = collected
		return nil
	})
	return stats, err
}

// collectStats runs the identical read-only aggregate against one
// database. Sums default to 0 when no rows contribute.
func (s *Service) collectStats(ctx context.Context, conn *gorm.DB) (BranchStats, error) {
	var stats BranchStats

	var sales, purchases *float64
	if err := conn.WithContext(ctx).Model(&posdomain.SaleInvoice{}).
		Select("SUM(total_amount)").Scan(&sales).Error; err != nil {
		return stats, err
	}
	if err := conn.WithContext(ctx).Model(&posdomain.PurchaseInvoice{}).
		Select("SUM(total_amount)").Scan(&purchases).Error; err != nil {
		return stats, err
	}
	if sales != nil {
		stats.Sales = *sales
	}
	if purchases != nil {
		stats.Purchases = *purchases
	}

	if err := conn.WithContext(ctx).Model(&posdomain.Product{}).
		Where("status = ?", "active").Count(&stats.Products).Error; err != nil {
		return stats, err
	}
	if err := conn.WithContext(ctx).Model(&posdomain.Customer{}).
		Where("status = ?", "active").Count(&stats.Customers).Error; err != nil {
		return stats, err
	}
	if err := conn.WithContext(ctx).Model(&posdomain.Transaction{}).
		Count(&stats.Transactions).Error; err != nil {
		return stats, err
	}

	return stats, nil
}

func (s *Service) mainSales(ctx context.Context, start, end *time.Time) ([]SaleRow, error) {
	sales, err := s.querySales(ctx, s.db, start, end)
	if err != nil {
		return nil, err
	}
	tagSales(sales, "Main Branch", MainBranchID)
	return sales, nil
}

func (s *Service) branchSales(ctx context.Context, branch *storedomain.Store, start, end *time.Time) ([]SaleRow, error) {
	var sales []SaleRow
	err := s.withBranch(ctx, branch, func(ctx context.Context, conn *gorm.DB) error {
		queried, err := s.querySales(ctx, conn, start, end)
		if err != nil {
			return err
		}
		sales = queried
		return nil
	})
	if err != nil {
		return nil, err
	}
	tagSales(sales, branch.Name, branch.ID.String())
	return sales, nil
}

func (s *Service) querySales(ctx context.Context, conn *gorm.DB, start, end *time.Time) ([]SaleRow, error) {
	var rows []SaleRow
	err := applyDateRange(conn.WithContext(ctx).Model(&posdomain.SaleInvoice{}), start, end).
		Select("id", "date", "total_amount", "paid_amount", "due_amount", "created_at").
		Order("date DESC").
		Limit(branchRowLimit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Service) mainTransactions(ctx context.Context, start, end *time.Time) ([]TransactionRow, error) {
	transactions, err := s.queryTransactions(ctx, s.db, start, end)
	if err != nil {
		return nil, err
	}
	tagTransactions(transactions, "Main Branch", MainBranchID)
	return transactions, nil
}

func (s *Service) branchTransactions(ctx context.Context, branch *storedomain.Store, start, end *time.Time) ([]TransactionRow, error) {
	var transactions []TransactionRow
	err := s.withBranch(ctx, branch, func(ctx context.Context, conn *gorm.DB) error {
		queried, err := s.queryTransactions(ctx, conn, start, end)
		if err != nil {
			return err
		}
		transactions = queried
		return nil
	})
	if err != nil {
		return nil, err
	}
	tagTransactions(transactions, branch.Name, branch.ID.String())
	return transactions, nil
}

func (s *Service) queryTransactions(ctx context.Context, conn *gorm.DB, start, end *time.Time) ([]TransactionRow, error) {
	var rows []TransactionRow
	err := applyDateRange(conn.WithContext(ctx).Model(&posdomain.Transaction{}), start, end).
		Select("id", "date", "amount", "type", "particulars", "created_at").
		Order("date DESC").
		Limit(branchRowLimit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Service) skip(branch *storedomain.Store, operation string, err error) {
	s.metrics.RecordBranchFailure(operation)
	s.log.Warn("skipping unreachable branch",
		zap.String("branch_id", branch.ID.String()),
		zap.String("branch", branch.Name),
		zap.String("operation", operation),
		zap.Error(err),
	)
}

func (d *DashboardStats) add(stats BranchStats) {
	d.TotalSales += stats.Sales
	d.TotalPurchases += stats.Purchases
	d.TotalProducts += stats.Products
	d.TotalCustomers += stats.Customers
	d.TotalTransactions += stats.Transactions
	d.BranchStats = append(d.BranchStats, stats)
	d.BranchCount = len(d.BranchStats)
}

func applyDateRange(query *gorm.DB, start, end *time.Time) *gorm.DB {
	if start != nil {
		query = query.Where("date >= ?", *start)
	}
	if end != nil {
		query = query.Where("date <= ?", *end)
	}
	return query
}

func tagSales(rows []SaleRow, branch, branchID string) {
	for i := range rows {
		rows[i].Branch = branch
		rows[i].BranchID = branchID
	}
}

func tagTransactions(rows []TransactionRow, branch, branchID string) {
	for i := range rows {
		rows[i].Branch = branch
		rows[i].BranchID = branchID
	}
}
