package steps

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cucumber/godog"
	"gorm.io/gorm"

	"github.com/assortlab/noos-go/internal/adapters/persistence"
	"github.com/assortlab/noos-go/internal/application/ingestion"
	"github.com/assortlab/noos-go/internal/application/scheduler"
	"github.com/assortlab/noos-go/internal/domain/shared"
	"github.com/assortlab/noos-go/internal/domain/task"
	"github.com/assortlab/noos-go/internal/infrastructure/database"
)

// uploadContext drives the ingestion pipelines against a fresh
// database per scenario
type uploadContext struct {
	db      *gorm.DB
	tempDir string
	pipes   *ingestion.Pipelines
	tasks   *persistence.GormTaskRepository
	styles  *persistence.GormStyleRepository
	skus    *persistence.GormSkuRepository
	stores  *persistence.GormStoreRepository
	sales   *persistence.GormSalesRepository

	lastTSV map[string]string
	result  *ingestion.UploadResult
	err     error
}

func (uc *uploadContext) reset() error {
	uc.cleanup()

	db, err := database.NewTestConnection()
	if err != nil {
		return fmt.Errorf("failed to create test database: %w", err)
	}
	dir, err := os.MkdirTemp("", "noos-bdd-")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}

	uc.db = db
	uc.tempDir = dir
	uc.tasks = persistence.NewGormTaskRepository(db)
	uc.styles = persistence.NewGormStyleRepository(db)
	uc.skus = persistence.NewGormSkuRepository(db)
	uc.stores = persistence.NewGormStoreRepository(db)
	uc.sales = persistence.NewGormSalesRepository(db)

	clock := shared.NewMockClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	uc.pipes = ingestion.NewPipelines(uc.styles, uc.skus, uc.stores, uc.sales,
		persistence.NewGormAuditLogRepository(db), clock,
		ingestion.Options{TempDir: dir, MaxRows: 1000})

	uc.lastTSV = make(map[string]string)
	uc.result = nil
	uc.err = nil
	return nil
}

func (uc *uploadContext) cleanup() {
	if uc.db != nil {
		database.Close(uc.db)
		uc.db = nil
	}
	if uc.tempDir != "" {
		os.RemoveAll(uc.tempDir)
		uc.tempDir = ""
	}
}

// runUpload executes one pipeline with a live task and reporter. The
// pipeline outcome lands in uc.result / uc.err for the Then steps.
func (uc *uploadContext) runUpload(entity, tsv string) error {
	kinds := map[string]task.Kind{
		"styles": task.KindStylesUpload,
		"skus":   task.KindSkusUpload,
		"stores": task.KindStoresUpload,
		"sales":  task.KindSalesUpload,
	}
	ctx := context.Background()

	tk := task.New(kinds[entity], entity+".tsv", "")
	if err := uc.tasks.Create(ctx, tk); err != nil {
		return err
	}
	if err := tk.Start(); err != nil {
		return err
	}
	if err := uc.tasks.Update(ctx, tk); err != nil {
		return err
	}
	rep := scheduler.NewReporter(uc.tasks, tk)

	data := []byte(tsv)
	switch entity {
	case "styles":
		uc.result, uc.err = uc.pipes.Styles.Run(ctx, rep, data)
	case "skus":
		uc.result, uc.err = uc.pipes.Skus.Run(ctx, rep, data)
	case "stores":
		uc.result, uc.err = uc.pipes.Stores.Run(ctx, rep, data)
	case "sales":
		uc.result, uc.err = uc.pipes.Sales.Run(ctx, rep, data)
	default:
		return fmt.Errorf("unknown upload entity %q", entity)
	}
	return nil
}

func (uc *uploadContext) anEmptyCatalog() error {
	// Every scenario starts on a fresh database
	return nil
}

func (uc *uploadContext) aFileIsUploaded(entity string, table *godog.Table) error {
	tsv := tableToTSV(table)
	uc.lastTSV[entity] = tsv
	return uc.runUpload(entity, tsv)
}

func (uc *uploadContext) theSameFileIsUploadedAgain(entity string) error {
	tsv, ok := uc.lastTSV[entity]
	if !ok {
		return fmt.Errorf("no previous %s upload in this scenario", entity)
	}
	return uc.runUpload(entity, tsv)
}

func (uc *uploadContext) theUploadSucceedsWithMessage(message string) error {
	if uc.err != nil {
		return fmt.Errorf("upload failed: %v", uc.err)
	}
	if uc.result == nil || !uc.result.Success {
		return fmt.Errorf("upload did not succeed: %+v", uc.result)
	}
	if uc.result.Message != message {
		return fmt.Errorf("expected message %q, got %q", message, uc.result.Message)
	}
	return nil
}

func (uc *uploadContext) theUploadIsRejectedWithRowErrors(count int) error {
	if uc.err == nil {
		return fmt.Errorf("expected the upload to be rejected")
	}
	var vf *ingestion.ErrValidationFailed
	if !errors.As(uc.err, &vf) {
		return fmt.Errorf("expected a validation failure, got %v", uc.err)
	}
	if vf.ErrorCount != count {
		return fmt.Errorf("expected %d row error(s), got %d", count, vf.ErrorCount)
	}
	return nil
}

func (uc *uploadContext) theRejectionMentions(substr string) error {
	if uc.result == nil {
		return fmt.Errorf("no upload result recorded")
	}
	for _, msg := range uc.result.Errors {
		if strings.Contains(msg, substr) {
			return nil
		}
	}
	return fmt.Errorf("no error mentions %q: %v", substr, uc.result.Errors)
}

func (uc *uploadContext) aWarningMentions(substr string) error {
	if uc.result == nil {
		return fmt.Errorf("no upload result recorded")
	}
	for _, msg := range uc.result.Warnings {
		if strings.Contains(msg, substr) {
			return nil
		}
	}
	return fmt.Errorf("no warning mentions %q: %v", substr, uc.result.Warnings)
}

func (uc *uploadContext) theUploadReportsSkippedRows(count int) error {
	if uc.result == nil {
		return fmt.Errorf("no upload result recorded")
	}
	if uc.result.SkippedCount != count {
		return fmt.Errorf("expected %d skipped row(s), got %d", count, uc.result.SkippedCount)
	}
	return nil
}

func (uc *uploadContext) theCatalogContainsStyles(count int) error {
	n, err := uc.styles.Count(context.Background())
	if err != nil {
		return err
	}
	if n != int64(count) {
		return fmt.Errorf("expected %d style(s) in the catalog, found %d", count, n)
	}
	return nil
}

func (uc *uploadContext) styleExists(code string) error {
	st, err := uc.styles.FindByCode(context.Background(), code)
	if err != nil {
		return err
	}
	if st == nil {
		return fmt.Errorf("style %s not found", code)
	}
	return nil
}

func (uc *uploadContext) styleHasBrand(code, brand string) error {
	st, err := uc.styles.FindByCode(context.Background(), code)
	if err != nil {
		return err
	}
	if st == nil {
		return fmt.Errorf("style %s not found", code)
	}
	if st.Brand != brand {
		return fmt.Errorf("expected style %s to have brand %q, got %q", code, brand, st.Brand)
	}
	return nil
}

func (uc *uploadContext) salesRowsAreStored(count int) error {
	rows, err := uc.sales.FindBetween(context.Background(), nil, nil)
	if err != nil {
		return err
	}
	if len(rows) != count {
		return fmt.Errorf("expected %d stored sales row(s), found %d", count, len(rows))
	}
	return nil
}

func InitializeUploadScenario(ctx *godog.ScenarioContext) {
	uc := &uploadContext{}

	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		return c, uc.reset()
	})
	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		uc.cleanup()
		return c, nil
	})

	ctx.Step(`^an empty catalog$`, uc.anEmptyCatalog)
	ctx.Step(`^a (styles|skus|stores|sales) file is uploaded:$`, uc.aFileIsUploaded)
	ctx.Step(`^the same (styles|skus|stores|sales) file is uploaded again$`, uc.theSameFileIsUploadedAgain)
	ctx.Step(`^the upload succeeds with message "([^"]*)"$`, uc.theUploadSucceedsWithMessage)
	ctx.Step(`^the upload is rejected with (\d+) row errors?$`, uc.theUploadIsRejectedWithRowErrors)
	ctx.Step(`^the rejection mentions "([^"]*)"$`, uc.theRejectionMentions)
	ctx.Step(`^a warning mentions "([^"]*)"$`, uc.aWarningMentions)
	ctx.Step(`^the upload reports (\d+) skipped rows?$`, uc.theUploadReportsSkippedRows)
	ctx.Step(`^the catalog contains (\d+) styles?$`, uc.theCatalogContainsStyles)
	ctx.Step(`^style "([^"]*)" exists$`, uc.styleExists)
	ctx.Step(`^style "([^"]*)" has brand "([^"]*)"$`, uc.styleHasBrand)
	ctx.Step(`^(\d+) sales rows? (?:is|are) stored$`, uc.salesRowsAreStored)
}
