package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go-inventory-tree/pkg/barcode"
)

// client is the HTTP plumbing shared by the catalog sources.
type client struct {
	baseURL   string
	userAgent string
	http      *http.Client
}

func newClient(baseURL, userAgent string, timeout time.Duration) client {
	return client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		http:      &http.Client{Timeout: timeout},
	}
}

// getJSON decodes the response body into out. A 404 reports found=false.
func (c client) getJSON(ctx context.Context, path string, params url.Values, out interface{}) (bool, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return false, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Errorf("%s: status %d: %s", c.baseURL, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return false, fmt.Errorf("%s: decode: %w", c.baseURL, err)
	}
	return true, nil
}

// OpenLibrary looks up books by ISBN.
type OpenLibrary struct {
	client
}

func NewOpenLibrary(baseURL, userAgent string, timeout time.Duration) *OpenLibrary {
	return &OpenLibrary{newClient(baseURL, userAgent, timeout)}
}

func (s *OpenLibrary) Name() string             { return "Open Library" }
func (s *OpenLibrary) ISBNOnly() bool           { return true }
func (s *OpenLibrary) Accepts(code string) bool { return barcode.IsISBN(code) }

type openLibraryBook struct {
	Title   string `json:"title"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
	Publishers []struct {
		Name string `json:"name"`
	} `json:"publishers"`
	PublishDate string `json:"publish_date"`
	Cover       struct {
		Small  string `json:"small"`
		Medium string `json:"medium"`
	} `json:"cover"`
}

func (s *OpenLibrary) Lookup(ctx context.Context, code string) (*Product, error) {
	key := "ISBN:" + code
	params := url.Values{}
	params.Set("bibkeys", key)
	params.Set("jscmd", "data")
	params.Set("format", "json")

	var books map[string]openLibraryBook
	ok, err := s.getJSON(ctx, "/api/books", params, &books)
	if err != nil || !ok {
		return nil, err
	}
	book, ok := books[key]
	if !ok || book.Title == "" {
		return nil, nil
	}

	var description *string
	var authors []string
	for _, a := range book.Authors {
		if a.Name != "" {
			authors = append(authors, a.Name)
		}
	}
	if len(authors) > 0 {
		description = strPtr("By " + strings.Join(authors, ", "))
	}
	if book.PublishDate != "" {
		text := "Published " + book.PublishDate
		if description != nil {
			text = *description + ". " + text
		}
		description = &text
	}
	var publisher *string
	if len(book.Publishers) > 0 && book.Publishers[0].Name != "" {
		publisher = strPtr(book.Publishers[0].Name)
	}
	image := book.Cover.Medium
	if image == "" {
		image = book.Cover.Small
	}

	return &Product{
		Barcode:     code,
		Name:        book.Title,
		Description: description,
		Brand:       publisher,
		Category:    strPtr("Books"),
		ImageURL:    optional(image),
		Source:      s.Name(),
		Confidence:  0.95,
	}, nil
}

// OpenFoodFacts covers EAN/UPC codes of food and household products.
type OpenFoodFacts struct {
	client
}

func NewOpenFoodFacts(baseURL, userAgent string, timeout time.Duration) *OpenFoodFacts {
	return &OpenFoodFacts{newClient(baseURL, userAgent, timeout)}
}

func (s *OpenFoodFacts) Name() string             { return "Open Food Facts" }
func (s *OpenFoodFacts) Accepts(code string) bool { return true }

type openFoodFactsResponse struct {
	Status  int `json:"status"`
	Product struct {
		ProductName        string `json:"product_name"`
		ProductNameEN      string `json:"product_name_en"`
		Brands             string `json:"brands"`
		Quantity           string `json:"quantity"`
		Categories         string `json:"categories"`
		ImageFrontSmallURL string `json:"image_front_small_url"`
		ImageURL           string `json:"image_url"`
	} `json:"product"`
}

func (s *OpenFoodFacts) Lookup(ctx context.Context, code string) (*Product, error) {
	var resp openFoodFactsResponse
	ok, err := s.getJSON(ctx, "/api/v2/product/"+url.PathEscape(code)+".json", nil, &resp)
	if err != nil || !ok || resp.Status != 1 {
		return nil, err
	}
	p := resp.Product
	name := p.ProductName
	if name == "" {
		name = p.ProductNameEN
	}
	if name == "" {
		return nil, nil
	}

	var category *string
	if p.Categories != "" {
		first := strings.TrimSpace(strings.Split(p.Categories, ",")[0])
		category = optional(first)
	}
	image := p.ImageFrontSmallURL
	if image == "" {
		image = p.ImageURL
	}
	var description *string
	if p.Quantity != "" {
		description = strPtr("Quantity: " + p.Quantity)
	}

	return &Product{
		Barcode:     code,
		Name:        name,
		Description: description,
		Brand:       optional(p.Brands),
		Category:    category,
		ImageURL:    optional(image),
		Source:      s.Name(),
		Confidence:  0.9,
	}, nil
}

// UPCItemDB is a general UPC/EAN catalog; the trial endpoint needs no key.
type UPCItemDB struct {
	client
}

func NewUPCItemDB(baseURL, userAgent string, timeout time.Duration) *UPCItemDB {
	return &UPCItemDB{newClient(baseURL, userAgent, timeout)}
}

func (s *UPCItemDB) Name() string { return "UPC Database" }

// Accepts numeric codes only; the catalog rejects anything else.
func (s *UPCItemDB) Accepts(code string) bool {
	return barcode.IsUPC(code) || barcode.IsEAN13(code) || barcode.IsEAN8(code)
}

type upcItemDBResponse struct {
	Code  string `json:"code"`
	Items []struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Brand       string   `json:"brand"`
		Category    string   `json:"category"`
		Images      []string `json:"images"`
	} `json:"items"`
}

func (s *UPCItemDB) Lookup(ctx context.Context, code string) (*Product, error) {
	params := url.Values{}
	params.Set("upc", code)

	var resp upcItemDBResponse
	ok, err := s.getJSON(ctx, "/prod/trial/lookup", params, &resp)
	if err != nil || !ok || resp.Code != "OK" || len(resp.Items) == 0 {
		return nil, err
	}
	item := resp.Items[0]
	if item.Title == "" {
		return nil, nil
	}
	var image string
	if len(item.Images) > 0 {
		image = item.Images[0]
	}
	return &Product{
		Barcode:     code,
		Name:        item.Title,
		Description: optional(item.Description),
		Brand:       optional(item.Brand),
		Category:    optional(item.Category),
		ImageURL:    optional(image),
		Source:      s.Name(),
		Confidence:  0.85,
	}, nil
}

func strPtr(s string) *string {
	return &s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
