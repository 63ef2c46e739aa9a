package steps

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cucumber/godog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/assortlab/noos-go/internal/adapters/persistence"
	"github.com/assortlab/noos-go/internal/application/noosengine"
	"github.com/assortlab/noos-go/internal/application/scheduler"
	"github.com/assortlab/noos-go/internal/domain/catalog"
	"github.com/assortlab/noos-go/internal/domain/noos"
	salesdomain "github.com/assortlab/noos-go/internal/domain/sales"
	"github.com/assortlab/noos-go/internal/domain/shared"
	"github.com/assortlab/noos-go/internal/domain/task"
	"github.com/assortlab/noos-go/internal/infrastructure/database"
)

// classificationContext seeds master data straight through the
// repositories and runs the engine against a live task reporter.
type classificationContext struct {
	db      *gorm.DB
	tasks   *persistence.GormTaskRepository
	styles  *persistence.GormStyleRepository
	skus    *persistence.GormSkuRepository
	stores  *persistence.GormStoreRepository
	sales   *persistence.GormSalesRepository
	results *persistence.GormNoosResultRepository
	engine  *noosengine.Engine

	skuByStyle map[string]int64
	storeID    int64
	runID      int64
	stats      *noosengine.RunStats
	runErr     error
}

func (cc *classificationContext) reset() error {
	cc.cleanup()

	db, err := database.NewTestConnection()
	if err != nil {
		return fmt.Errorf("failed to create test database: %w", err)
	}
	cc.db = db
	cc.tasks = persistence.NewGormTaskRepository(db)
	cc.styles = persistence.NewGormStyleRepository(db)
	cc.skus = persistence.NewGormSkuRepository(db)
	cc.stores = persistence.NewGormStoreRepository(db)
	cc.sales = persistence.NewGormSalesRepository(db)
	cc.results = persistence.NewGormNoosResultRepository(db)

	clock := shared.NewMockClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	cc.engine = noosengine.NewEngine(cc.sales, cc.skus, cc.styles, cc.results, clock)

	cc.skuByStyle = make(map[string]int64)
	cc.storeID = 0
	cc.runID = 0
	cc.stats = nil
	cc.runErr = nil
	return nil
}

func (cc *classificationContext) cleanup() {
	if cc.db != nil {
		database.Close(cc.db)
		cc.db = nil
	}
}

func (cc *classificationContext) aStoreIn(branch, city string) error {
	store := &catalog.Store{Branch: branch, City: city}
	if err := cc.stores.ApplyBatch(context.Background(), []*catalog.Store{store}, nil); err != nil {
		return err
	}
	cc.storeID = store.ID
	return nil
}

func (cc *classificationContext) aCatalogWithTheseStyles(table *godog.Table) error {
	ctx := context.Background()
	for i, row := range table.Rows {
		if i == 0 {
			continue // header
		}
		code := cellValue(table, row, "style")
		category := cellValue(table, row, "category")

		style := &catalog.Style{
			StyleCode:   code,
			Brand:       "Levis",
			Category:    category,
			SubCategory: "Casual",
			MRP:         decimal.NewFromInt(999),
			Gender:      "MEN",
		}
		if err := cc.styles.ApplyBatch(ctx, []*catalog.Style{style}, nil); err != nil {
			return err
		}
		sku := &catalog.SKU{Code: "K" + code, StyleID: style.ID, Size: "32"}
		if err := cc.skus.ApplyBatch(ctx, []*catalog.SKU{sku}, nil); err != nil {
			return err
		}
		cc.skuByStyle[code] = sku.ID
	}
	return nil
}

func (cc *classificationContext) theseSales(table *godog.Table) error {
	rows := make([]*salesdomain.Sale, 0, len(table.Rows)-1)
	for i, row := range table.Rows {
		if i == 0 {
			continue // header
		}
		styleCode := cellValue(table, row, "style")
		skuID, ok := cc.skuByStyle[styleCode]
		if !ok {
			return fmt.Errorf("style %s is not in the catalog", styleCode)
		}
		day, err := time.Parse("2006-01-02", cellValue(table, row, "day"))
		if err != nil {
			return err
		}
		qty, err := strconv.Atoi(cellValue(table, row, "quantity"))
		if err != nil {
			return err
		}
		revenue, err := decimal.NewFromString(cellValue(table, row, "revenue"))
		if err != nil {
			return err
		}
		discount, err := decimal.NewFromString(cellValue(table, row, "discount"))
		if err != nil {
			return err
		}
		rows = append(rows, &salesdomain.Sale{
			Date:     day,
			SkuID:    skuID,
			StoreID:  cc.storeID,
			Quantity: qty,
			Revenue:  revenue,
			Discount: discount,
		})
	}
	return cc.sales.ReplaceAll(context.Background(), rows)
}

// run executes the engine under a fresh RUNNING task so the results
// carry a real algorithm run id.
func (cc *classificationContext) run(params *noos.Parameters) error {
	ctx := context.Background()
	t := task.New(task.KindAlgorithmRun, "", params.Encode())
	if err := cc.tasks.Create(ctx, t); err != nil {
		return err
	}
	if err := t.Start(); err != nil {
		return err
	}
	if err := cc.tasks.Update(ctx, t); err != nil {
		return err
	}
	cc.runID = t.ID()
	cc.stats, cc.runErr = cc.engine.Run(ctx, scheduler.NewReporter(cc.tasks, t), params)
	return nil
}

func (cc *classificationContext) runsWithDefaultParameters() error {
	return cc.run(noos.DefaultParameters())
}

func (cc *classificationContext) runsForDates(start, end string) error {
	from, err := time.Parse("2006-01-02", start)
	if err != nil {
		return err
	}
	to, err := time.Parse("2006-01-02", end)
	if err != nil {
		return err
	}
	params := noos.DefaultParameters()
	params.AnalysisStartDate = &from
	params.AnalysisEndDate = &to
	return cc.run(params)
}

func (cc *classificationContext) runsWithMinimumVolume(volume int) error {
	params := noos.DefaultParameters()
	params.MinVolumeThreshold = float64(volume)
	return cc.run(params)
}

func (cc *classificationContext) theRunCompletesWithClassifiedStyles(count int) error {
	if cc.runErr != nil {
		return fmt.Errorf("run failed: %v", cc.runErr)
	}
	if cc.stats.Styles != count {
		return fmt.Errorf("expected %d classified style(s), got %d", count, cc.stats.Styles)
	}
	return nil
}

func (cc *classificationContext) theRunFailsWith(message string) error {
	if cc.runErr == nil {
		return fmt.Errorf("expected the run to fail")
	}
	if cc.runErr.Error() != message {
		return fmt.Errorf("expected error %q, got %q", message, cc.runErr.Error())
	}
	return nil
}

func (cc *classificationContext) findResult(styleCode string) (*noos.Result, error) {
	rows, err := cc.results.FindByRun(context.Background(), cc.runID)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row.StyleCode == styleCode {
			return row, nil
		}
	}
	return nil, nil
}

func (cc *classificationContext) styleIsClassifiedAs(styleCode, classification string) error {
	row, err := cc.findResult(styleCode)
	if err != nil {
		return err
	}
	if row == nil {
		return fmt.Errorf("style %s has no classification", styleCode)
	}
	if string(row.Type) != classification {
		return fmt.Errorf("expected style %s to be %s, got %s", styleCode, classification, row.Type)
	}
	return nil
}

func (cc *classificationContext) styleHasNoClassification(styleCode string) error {
	row, err := cc.findResult(styleCode)
	if err != nil {
		return err
	}
	if row != nil {
		return fmt.Errorf("expected no classification for style %s, found %s", styleCode, row.Type)
	}
	return nil
}

func InitializeClassificationScenario(ctx *godog.ScenarioContext) {
	cc := &classificationContext{}

	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		return c, cc.reset()
	})
	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		cc.cleanup()
		return c, nil
	})

	ctx.Step(`^a store "([^"]*)" in "([^"]*)"$`, cc.aStoreIn)
	ctx.Step(`^a catalog with these styles:$`, cc.aCatalogWithTheseStyles)
	ctx.Step(`^these sales:$`, cc.theseSales)
	ctx.Step(`^the classification runs with default parameters$`, cc.runsWithDefaultParameters)
	ctx.Step(`^the classification runs for dates "([^"]*)" to "([^"]*)"$`, cc.runsForDates)
	ctx.Step(`^the classification runs with a minimum volume of (\d+)$`, cc.runsWithMinimumVolume)
	ctx.Step(`^the run completes with (\d+) classified styles?$`, cc.theRunCompletesWithClassifiedStyles)
	ctx.Step(`^the run fails with "([^"]*)"$`, cc.theRunFailsWith)
	ctx.Step(`^style "([^"]*)" is classified as "([^"]*)"$`, cc.styleIsClassifiedAs)
	ctx.Step(`^style "([^"]*)" has no classification$`, cc.styleHasNoClassification)
}
