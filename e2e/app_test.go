package e2e

import (
	"testing"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// E2ETestSuite provides a test suite for end-to-end tests
type E2ETestSuite struct {
	suite.Suite
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
	expect  playwright.PlaywrightAssertions
}

// SetupSuite runs once before all tests
func (suite *E2ETestSuite) SetupSuite() {
	pw, err := playwright.Run()
	require.NoError(suite.T(), err, "could not launch playwright")
	suite.pw = pw

	browser, err := pw.Chromium.Launch()
	require.NoError(suite.T(), err, "could not launch chromium")
	suite.browser = browser

	suite.expect = playwright.NewPlaywrightAssertions()
}

// TearDownSuite runs once after all tests
func (suite *E2ETestSuite) TearDownSuite() {
	if suite.browser != nil {
		suite.browser.Close()
	}
	if suite.pw != nil {
		suite.pw.Stop()
	}
}

// SetupTest runs before each test
func (suite *E2ETestSuite) SetupTest() {
	page, err := suite.browser.NewPage()
	require.NoError(suite.T(), err, "could not create page")
	suite.page = page

	_, err = suite.page.Goto(appURL)
	require.NoError(suite.T(), err, "could not navigate to app")
}

// TearDownTest runs after each test
func (suite *E2ETestSuite) TearDownTest() {
	if suite.page != nil {
		suite.page.Close()
	}
}

func (suite *E2ETestSuite) login() {
	// Wait for login form
	err := suite.expect.Locator(suite.page.Locator(".login-form")).ToBeVisible()
	require.NoError(suite.T(), err, "login form not visible")

	// Fill in credentials
	err = suite.page.Locator("input[name=username]").Fill("testuser")
	require.NoError(suite.T(), err, "failed to fill username")

	err = suite.page.Locator("input[name=password]").Fill("testpass123")
	require.NoError(suite.T(), err, "failed to fill password")

	// Submit login
	err = suite.page.Locator(".login-btn").Click()
	require.NoError(suite.T(), err, "failed to click login")

	// Wait for redirect to the ledger page
	err = suite.expect.Locator(suite.page.Locator(".list-screen")).ToBeVisible()
	require.NoError(suite.T(), err, "did not redirect to ledger page after login")
}

func (suite *E2ETestSuite) addTransaction(description, amount, typ string) {
	err := suite.page.Locator(".add-form input[name=description]").Fill(description)
	require.NoError(suite.T(), err, "failed to fill description")

	err = suite.page.Locator(".add-form input[name=amount]").Fill(amount)
	require.NoError(suite.T(), err, "failed to fill amount")

	_, err = suite.page.Locator(".add-form select[name=type]").SelectOption(playwright.SelectOptionValues{
		Values: &[]string{typ},
	})
	require.NoError(suite.T(), err, "failed to select type")

	err = suite.page.Locator(".add-btn").Click()
	require.NoError(suite.T(), err, "failed to submit transaction")
}

func (suite *E2ETestSuite) TestCompleteUserFlow() {
	// Login
	suite.login()

	// Start from an empty ledger
	rows := suite.page.Locator(".transaction-row")
	err := suite.expect.Locator(rows).ToHaveCount(0)
	require.NoError(suite.T(), err, "ledger should start empty")

	suite.addTransaction("Salary", "1000.00", "income")
	err = suite.expect.Locator(rows).ToHaveCount(1)
	require.NoError(suite.T(), err, "income row missing")

	suite.addTransaction("Rent", "400.00", "expense")
	err = suite.expect.Locator(rows).ToHaveCount(2)
	require.NoError(suite.T(), err, "expense row missing")

	// Verify totals
	err = suite.expect.Locator(suite.page.Locator(".net-position")).ToHaveText("600.00")
	require.NoError(suite.T(), err, "net position mismatch")

	err = suite.expect.Locator(rows.First().Locator(".description")).ToHaveText("Salary")
	require.NoError(suite.T(), err, "rows not in insertion order")

	// Remove the expense
	err = rows.Nth(1).Locator(".remove-btn").Click()
	require.NoError(suite.T(), err, "failed to click remove")

	err = suite.expect.Locator(rows).ToHaveCount(1)
	require.NoError(suite.T(), err, "row not removed")

	err = suite.expect.Locator(suite.page.Locator(".net-position")).ToHaveText("1000.00")
	require.NoError(suite.T(), err, "net position not updated after remove")

	// Clean up for other tests
	err = rows.First().Locator(".remove-btn").Click()
	require.NoError(suite.T(), err, "failed to remove remaining row")
	err = suite.expect.Locator(rows).ToHaveCount(0)
	require.NoError(suite.T(), err, "ledger not empty after cleanup")
}

func (suite *E2ETestSuite) TestInvalidLogin() {
	err := suite.page.Locator("input[name=username]").Fill("testuser")
	require.NoError(suite.T(), err, "failed to fill username")

	err = suite.page.Locator("input[name=password]").Fill("wrong")
	require.NoError(suite.T(), err, "failed to fill password")

	err = suite.page.Locator(".login-btn").Click()
	require.NoError(suite.T(), err, "failed to click login")

	err = suite.expect.Locator(suite.page.Locator(".login-form .error")).ToHaveText("Invalid username or password")
	require.NoError(suite.T(), err, "error message mismatch")
}

func (suite *E2ETestSuite) TestLogout() {
	suite.login()

	err := suite.page.Locator(".logout-link").Click()
	require.NoError(suite.T(), err, "failed to click logout")

	err = suite.expect.Locator(suite.page.Locator(".login-form")).ToBeVisible()
	require.NoError(suite.T(), err, "not back on login page after logout")
}

// TestE2ESuite runs the e2e test suite
func TestE2ESuite(t *testing.T) {
	suite.Run(t, new(E2ETestSuite))
}
