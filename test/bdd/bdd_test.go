package bdd

import (
	"testing"

	"github.com/cucumber/godog"

	"github.com/assortlab/noos-go/test/bdd/steps"
)

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}

func InitializeScenario(sc *godog.ScenarioContext) {
	// Upload steps registered first so their file-table steps take
	// precedence over the generic catalog steps used by classification.
	steps.InitializeUploadScenario(sc)
	steps.InitializeTaskLifecycleScenario(sc)
	steps.InitializeClassificationScenario(sc)
}
