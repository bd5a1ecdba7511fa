package purchase

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/stealth"
	"github.com/rs/zerolog/log"

	"github.com/shelfwatch/shelfwatch/internal/models"
)

// Selector sets tried in order. Retail sites converge on a small set of
// patterns for these controls; the first match wins.
var (
	addToCartSelectors = []string{
		"#add-to-cart-button",
		"button[name='add']",
		"button[data-testid='add-to-cart']",
		"button.add-to-cart",
		"form[action*='cart'] button[type='submit']",
	}
	quantitySelectors = []string{
		"select#quantity",
		"select[name='quantity']",
		"input[name='quantity']",
	}
	confirmationSelectors = []string{
		"#nav-cart-count",
		".cart-count",
		"[data-testid='cart-confirmation']",
		".added-to-cart",
	}
)

// BrowserCart drives the shared headless browser through a product page's
// add-to-cart flow.
type BrowserCart struct {
	// BrowserFn returns the shared browser; pages opened here share cookies
	// with the fetch side.
	BrowserFn func() (*rod.Browser, error)
	// StepTimeout bounds each page interaction.
	StepTimeout time.Duration
}

// NewBrowserCart creates a cart action on the given browser source.
func NewBrowserCart(browserFn func() (*rod.Browser, error)) *BrowserCart {
	return &BrowserCart{
		BrowserFn:   browserFn,
		StepTimeout: 20 * time.Second,
	}
}

// Attempt performs one full add-to-cart pass: load the page, apply variant
// selections, set quantity, click the button and look for confirmation.
func (b *BrowserCart) Attempt(ctx context.Context, product models.Product, quantity int) (*Result, error) {
	browser, err := b.BrowserFn()
	if err != nil {
		return nil, fmt.Errorf("cart browser: %w", err)
	}

	page, err := stealth.Page(browser)
	if err != nil {
		return nil, fmt.Errorf("cart page: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			log.Debug().Err(err).Str("component", "purchase").Msg("Cart page close failed")
		}
	}()

	page = page.Context(ctx).Timeout(b.StepTimeout)
	if err := page.Navigate(product.URL); err != nil {
		return nil, fmt.Errorf("navigate %s: %w", product.URL, err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("load %s: %w", product.URL, err)
	}

	result := &Result{}

	for name, value := range product.SelectedVariants {
		if err := selectVariant(page, name, value); err != nil {
			// A missing variant control is survivable; the default selection
			// may still be the right one. Record it so the user can verify.
			result.Warning = joinWarning(result.Warning,
				fmt.Sprintf("variant %s=%s not applied: %v", name, value, err))
		}
	}

	obtained, pageMax, warn := setQuantity(page, quantity)
	result.PageMax = pageMax
	if warn != "" {
		result.Warning = joinWarning(result.Warning, warn)
	}

	clicked := false
	for _, sel := range addToCartSelectors {
		el, err := page.Element(sel)
		if err != nil {
			continue
		}
		if err := el.Click("left", 1); err != nil {
			continue
		}
		clicked = true
		break
	}
	if !clicked {
		return nil, fmt.Errorf("no add-to-cart control found on %s", product.URL)
	}

	if err := page.WaitLoad(); err != nil {
		log.Debug().Err(err).Str("component", "purchase").Msg("Post-click load wait failed")
	}

	for _, sel := range confirmationSelectors {
		if has, _, _ := page.Has(sel); has {
			result.Success = true
			result.QuantityObtained = obtained
			return result, nil
		}
	}

	result.Warning = joinWarning(result.Warning, "no cart confirmation detected")
	return result, nil
}

// selectVariant applies one variant choice through a select control or an
// option button labelled with the value.
func selectVariant(page *rod.Page, name, value string) error {
	if sel, err := page.Element(fmt.Sprintf("select[name='%s']", strings.ToLower(name))); err == nil {
		return sel.Select([]string{value}, true, rod.SelectorTypeText)
	}

	el, err := page.ElementR("button, label, [role='radio']", "(?i)^"+value+"$")
	if err != nil {
		return fmt.Errorf("no control for %s", name)
	}
	return el.Click("left", 1)
}

// setQuantity tries to request the wanted quantity and reports what the page
// accepted, along with any maximum it exposes.
func setQuantity(page *rod.Page, want int) (obtained, pageMax int, warning string) {
	obtained = want
	for _, sel := range quantitySelectors {
		el, err := page.Element(sel)
		if err != nil {
			continue
		}

		if strings.HasPrefix(sel, "select") {
			if maxStr, err := el.Eval(`() => {
				const opts = this.options;
				return opts.length ? opts[opts.length - 1].value : "";
			}`); err == nil {
				if n, convErr := strconv.Atoi(strings.TrimSpace(maxStr.Value.Str())); convErr == nil {
					pageMax = n
					if want > n {
						obtained = n
						warning = fmt.Sprintf("page allows at most %d", n)
					}
				}
			}
			if err := el.Select([]string{strconv.Itoa(obtained)}, true, rod.SelectorTypeText); err != nil {
				warning = joinWarning(warning, "quantity not applied")
				obtained = 1
			}
			return obtained, pageMax, warning
		}

		if err := el.Input(strconv.Itoa(obtained)); err != nil {
			warning = joinWarning(warning, "quantity not applied")
			obtained = 1
		}
		return obtained, pageMax, warning
	}

	if want > 1 {
		warning = "no quantity control, page default used"
		obtained = 1
	}
	return obtained, pageMax, warning
}

func joinWarning(existing, extra string) string {
	if existing == "" {
		return extra
	}
	return existing + "; " + extra
}
