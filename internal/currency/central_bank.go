package currency

import (
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rezonia/invoice-pricer/internal/model"
)

// CentralBankQuoteCurrency is the currency every bulletin rate is quoted in
const CentralBankQuoteCurrency = model.CurrencyTRY

// TCMB daily bulletin structures
type tcmbBulletin struct {
	XMLName    xml.Name       `xml:"Tarih_Date"`
	Date       string         `xml:"Date,attr"`
	BulletinNo string         `xml:"Bulten_No,attr"`
	Currencies []tcmbCurrency `xml:"Currency"`
}

type tcmbCurrency struct {
	Code            string `xml:"CurrencyCode,attr"`
	Unit            string `xml:"Unit"`
	Name            string `xml:"CurrencyName"`
	ForexBuying     string `xml:"ForexBuying"`
	ForexSelling    string `xml:"ForexSelling"`
	BanknoteBuying  string `xml:"BanknoteBuying"`
	BanknoteSelling string `xml:"BanknoteSelling"`
}

// CentralBankProvider reads the Turkish central bank (TCMB) daily bulletin.
// Rates are quoted against TRY and normalised to one currency unit.
type CentralBankProvider struct {
	url string
	cfg *httpConfig
}

// NewCentralBankProvider creates a provider for the bulletin at url
func NewCentralBankProvider(url string, opts ...ProviderOption) *CentralBankProvider {
	return &CentralBankProvider{
		url: url,
		cfg: newHTTPConfig(opts),
	}
}

// Source returns model.SourceCentralBank
func (p *CentralBankProvider) Source() model.RateSource {
	return model.SourceCentralBank
}

// LatestRates fetches and parses the bulletin
func (p *CentralBankProvider) LatestRates(ctx context.Context) ([]model.RateQuote, error) {
	body, err := fetch(ctx, p.cfg.client, model.SourceCentralBank, p.url, "application/xml")
	if err != nil {
		return nil, err
	}
	return ParseCentralBankXML(body)
}

// ParseCentralBankXML parses a TCMB bulletin.
// Entries without a forex selling rate (e.g. XDR) are skipped.
func ParseCentralBankXML(data []byte) ([]model.RateQuote, error) {
	var bulletin tcmbBulletin
	decoder := xml.NewDecoder(bytes.NewReader(data))
	// Only ASCII numeric fields are read, so non UTF-8 bulletins decode as-is.
	decoder.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	if err := decoder.Decode(&bulletin); err != nil {
		return nil, model.NewProviderError(model.SourceCentralBank, "XML parsing failed", err)
	}

	quotes := make([]model.RateQuote, 0, len(bulletin.Currencies))
	for _, c := range bulletin.Currencies {
		selling, ok := parseRate(c.ForexSelling)
		if !ok {
			continue
		}
		buying, _ := parseRate(c.ForexBuying)

		unit, ok := parseRate(c.Unit)
		if !ok {
			unit = decimal.NewFromInt(1)
		}

		quotes = append(quotes, model.RateQuote{
			CurrencyCode:         model.NormalizeCurrency(c.Code),
			RelationCurrencyCode: CentralBankQuoteCurrency,
			SellingRate:          selling.Div(unit),
			BuyingRate:           buying.Div(unit),
		})
	}

	if len(quotes) == 0 {
		return nil, model.NewProviderError(model.SourceCentralBank, "bulletin contains no rates", nil)
	}
	return quotes, nil
}

func parseRate(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, false
	}
	return d, true
}
