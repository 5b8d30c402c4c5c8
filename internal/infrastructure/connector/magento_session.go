package connector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/erp/catalogsync/internal/domain/catalog"
	"github.com/erp/catalogsync/internal/domain/integration"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Destination scope codes and ids.
const (
	storeCodeAll        = "all"
	adminStoreID        = "0"
	productEntityTypeID = "4"
	defaultSourceCode   = "default"
)

// Session is one authenticated conversation with a Magento 2 REST API.
// Lookups of attribute sets and store views are cached for its lifetime.
type Session struct {
	client    *restClient
	logger    *zap.Logger
	scope     string
	closeFunc func() error

	mu            sync.Mutex
	attributeSets map[string]int64
	storeCodes    map[string]string
	closed        bool
}

func newSession(client *restClient, scope string, closer io.Closer, logger *zap.Logger) *Session {
	if scope == "" {
		scope = storeCodeAll
	}
	s := &Session{
		client:        client,
		logger:        logger,
		scope:         scope,
		attributeSets: make(map[string]int64),
	}
	if closer != nil {
		s.closeFunc = closer.Close
	}
	return s
}

// ---------------------------------------------------------------------------
// Products
// ---------------------------------------------------------------------------

type customAttribute struct {
	Code  string `json:"attribute_code"`
	Value any    `json:"value"`
}

type productEntity struct {
	SKU              string            `json:"sku"`
	AttributeSetID   int64             `json:"attribute_set_id,omitempty"`
	TypeID           string            `json:"type_id,omitempty"`
	Name             any               `json:"name,omitempty"`
	Price            any               `json:"price,omitempty"`
	Status           any               `json:"status,omitempty"`
	Visibility       any               `json:"visibility,omitempty"`
	Weight           any               `json:"weight,omitempty"`
	CustomAttributes []customAttribute `json:"custom_attributes,omitempty"`
	MediaGallery     []mediaEntry      `json:"media_gallery_entries,omitempty"`
	Options          []productOption   `json:"options,omitempty"`
}

type productRequest struct {
	Product     productEntity `json:"product"`
	SaveOptions bool          `json:"saveOptions"`
}

type productResponse struct {
	ID  json.Number `json:"id"`
	SKU string      `json:"sku"`
}

// SyncProduct creates or updates the product in its store scope and returns
// the destination product id.
func (s *Session) SyncProduct(ctx context.Context, req integration.ProductRequest) (string, error) {
	if req.SKU == "" {
		return "", fmt.Errorf("%w: sku is required", integration.ErrEntityRejected)
	}
	setID, err := s.attributeSetID(ctx, req.AttributeSet)
	if err != nil {
		return "", err
	}
	code, err := s.storeCode(ctx, req.StoreID)
	if err != nil {
		return "", err
	}

	entity := productEntity{SKU: req.SKU, AttributeSetID: setID, TypeID: req.TypeID}
	applyProductFields(&entity, req.Data)
	return s.putProduct(ctx, code, entity)
}

// applyProductFields splits data into the fields the REST API takes at the
// top level and custom_attributes.
func applyProductFields(entity *productEntity, data map[string]any) {
	codes := make([]string, 0, len(data))
	for code := range data {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		value := attributeValue(data[code])
		switch code {
		case "name":
			entity.Name = value
		case "price":
			entity.Price = value
		case "status":
			entity.Status = value
		case "visibility":
			entity.Visibility = value
		case "weight":
			entity.Weight = value
		default:
			entity.CustomAttributes = append(entity.CustomAttributes, customAttribute{Code: code, Value: value})
		}
	}
}

// attributeValue flattens list values into the comma form multiselect
// attributes take.
func attributeValue(v any) any {
	switch t := v.(type) {
	case []any:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			parts = append(parts, fmt.Sprint(p))
		}
		return strings.Join(parts, ",")
	case []string:
		return strings.Join(t, ",")
	case catalog.Value:
		return strings.Join(t, ",")
	default:
		return v
	}
}

func (s *Session) putProduct(ctx context.Context, storeCode string, entity productEntity) (string, error) {
	var resp productResponse
	path := fmt.Sprintf("/rest/%s/V1/products/%s", url.PathEscape(storeCode), url.PathEscape(entity.SKU))
	if err := s.client.doRequest(ctx, http.MethodPut, path, nil, productRequest{Product: entity, SaveOptions: true}, &resp); err != nil {
		return "", fmt.Errorf("connector: sync product %s: %w", entity.SKU, err)
	}
	return resp.ID.String(), nil
}

func (s *Session) productID(ctx context.Context, sku string) (string, error) {
	var resp productResponse
	path := fmt.Sprintf("/rest/%s/V1/products/%s", storeCodeAll, url.PathEscape(sku))
	if err := s.client.doRequest(ctx, http.MethodGet, path, nil, nil, &resp); err != nil {
		return "", fmt.Errorf("connector: get product %s: %w", sku, err)
	}
	return resp.ID.String(), nil
}

// ---------------------------------------------------------------------------
// Lookups
// ---------------------------------------------------------------------------

type attributeSetList struct {
	Items []struct {
		ID   int64  `json:"attribute_set_id"`
		Name string `json:"attribute_set_name"`
	} `json:"items"`
}

func (s *Session) attributeSetID(ctx context.Context, name string) (int64, error) {
	if name == "" {
		name = catalog.DefaultAttributeSet
	}
	s.mu.Lock()
	id, ok := s.attributeSets[name]
	s.mu.Unlock()
	if ok {
		return id, nil
	}

	query := url.Values{}
	query.Set("searchCriteria[filterGroups][0][filters][0][field]", "attribute_set_name")
	query.Set("searchCriteria[filterGroups][0][filters][0][value]", name)
	query.Set("searchCriteria[filterGroups][0][filters][0][conditionType]", "eq")
	query.Set("searchCriteria[filterGroups][1][filters][0][field]", "entity_type_id")
	query.Set("searchCriteria[filterGroups][1][filters][0][value]", productEntityTypeID)
	query.Set("searchCriteria[filterGroups][1][filters][0][conditionType]", "eq")

	var list attributeSetList
	if err := s.client.doRequest(ctx, http.MethodGet, "/rest/V1/eav/attribute-sets/list", query, nil, &list); err != nil {
		return 0, fmt.Errorf("connector: resolve attribute set %q: %w", name, err)
	}
	for _, item := range list.Items {
		if item.Name == name {
			s.mu.Lock()
			s.attributeSets[name] = item.ID
			s.mu.Unlock()
			return item.ID, nil
		}
	}
	return 0, fmt.Errorf("%w: %w: %q", integration.ErrEntityRejected, ErrAttributeSetNotFound, name)
}

type storeView struct {
	ID   json.Number `json:"id"`
	Code string      `json:"code"`
}

// storeCode maps a store id to its REST scope code. The admin store writes
// to all scopes.
func (s *Session) storeCode(ctx context.Context, storeID string) (string, error) {
	if storeID == "" || storeID == adminStoreID {
		return storeCodeAll, nil
	}
	s.mu.Lock()
	codes := s.storeCodes
	s.mu.Unlock()

	if codes == nil {
		var views []storeView
		if err := s.client.doRequest(ctx, http.MethodGet, "/rest/V1/store/storeViews", nil, nil, &views); err != nil {
			return "", fmt.Errorf("connector: list store views: %w", err)
		}
		codes = make(map[string]string, len(views))
		for _, v := range views {
			codes[v.ID.String()] = v.Code
		}
		s.mu.Lock()
		s.storeCodes = codes
		s.mu.Unlock()
	}

	code, ok := codes[storeID]
	if !ok {
		return "", fmt.Errorf("%w: %w: %q", integration.ErrEntityRejected, ErrStoreNotFound, storeID)
	}
	return code, nil
}

// ---------------------------------------------------------------------------
// Extensions
// ---------------------------------------------------------------------------

// SyncExtension pushes extension data of the given kind for sku and returns
// the destination product id.
func (s *Session) SyncExtension(ctx context.Context, sku, kind string, data []byte) (string, error) {
	dt, err := catalog.ParseDataType(kind)
	if err != nil || !dt.IsExtension() {
		return "", fmt.Errorf("%w: %w: %q", integration.ErrEntityRejected, ErrUnsupportedKind, kind)
	}
	switch dt {
	case catalog.DataTypeInventory:
		return s.syncInventory(ctx, sku, data)
	case catalog.DataTypeImageGallery:
		return s.syncGallery(ctx, sku, data)
	case catalog.DataTypeCustomOption:
		return s.syncCustomOptions(ctx, sku, data)
	case catalog.DataTypeVariants:
		return s.syncVariants(ctx, sku, data)
	}
	return "", fmt.Errorf("%w: %w: %q", integration.ErrEntityRejected, ErrUnsupportedKind, kind)
}

func decodeExtension(sku string, data []byte, dst any) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %w: %s: %v", integration.ErrEntityRejected, ErrInvalidExtension, sku, err)
	}
	return nil
}

type sourceItem struct {
	SKU        string `json:"sku"`
	SourceCode string `json:"source_code"`
	Quantity   any    `json:"quantity"`
	Status     int    `json:"status"`
}

func (s *Session) syncInventory(ctx context.Context, sku string, data []byte) (string, error) {
	var entries []catalog.InventoryEntry
	if err := decodeExtension(sku, data, &entries); err != nil {
		return "", err
	}
	items := make([]sourceItem, 0, len(entries))
	for _, e := range entries {
		source := e.Warehouse
		if source == "" {
			source = defaultSourceCode
		}
		status := 0
		if e.InStock {
			status = 1
		}
		items = append(items, sourceItem{
			SKU:        sku,
			SourceCode: source,
			Quantity:   json.Number(e.Qty.String()),
			Status:     status,
		})
	}
	body := map[string]any{"sourceItems": items}
	if err := s.client.doRequest(ctx, http.MethodPost, "/rest/V1/inventory/source-items", nil, body, nil); err != nil {
		return "", fmt.Errorf("connector: sync inventory %s: %w", sku, err)
	}
	return s.productID(ctx, sku)
}

type mediaEntry struct {
	MediaType string   `json:"media_type"`
	Label     string   `json:"label"`
	Position  int      `json:"position"`
	Disabled  bool     `json:"disabled"`
	Types     []string `json:"types"`
	File      string   `json:"file"`
}

func (s *Session) syncGallery(ctx context.Context, sku string, data []byte) (string, error) {
	var gallery catalog.ImageGallery
	if err := decodeExtension(sku, data, &gallery); err != nil {
		return "", err
	}
	entries := make([]mediaEntry, 0, len(gallery.MediaGallery))
	for _, m := range gallery.MediaGallery {
		types := []string{}
		for _, role := range catalog.ImageRoles {
			if gallery.Role(role) == m.Value {
				types = append(types, role)
			}
		}
		entries = append(entries, mediaEntry{
			MediaType: m.MediaType,
			Label:     m.Label,
			Position:  atoiOr(m.Position, 0),
			Types:     types,
			File:      m.Value,
		})
	}
	return s.putProduct(ctx, s.scope, productEntity{SKU: sku, MediaGallery: entries})
}

type optionValue struct {
	Title     string `json:"title"`
	Price     any    `json:"price,omitempty"`
	PriceType string `json:"price_type,omitempty"`
	SKU       string `json:"sku,omitempty"`
	SortOrder int    `json:"sort_order"`
}

type productOption struct {
	ProductSKU string        `json:"product_sku"`
	Title      string        `json:"title"`
	Type       string        `json:"type"`
	IsRequire  bool          `json:"is_require"`
	SortOrder  int           `json:"sort_order"`
	Price      any           `json:"price,omitempty"`
	PriceType  string        `json:"price_type,omitempty"`
	SKU        string        `json:"sku,omitempty"`
	Values     []optionValue `json:"values,omitempty"`
}

func (s *Session) syncCustomOptions(ctx context.Context, sku string, data []byte) (string, error) {
	var options []catalog.CustomOption
	if err := decodeExtension(sku, data, &options); err != nil {
		return "", err
	}
	out := make([]productOption, 0, len(options))
	for _, o := range options {
		opt := productOption{
			ProductSKU: sku,
			Title:      o.Title,
			Type:       o.Type,
			IsRequire:  o.IsRequire == "1" || strings.EqualFold(o.IsRequire, "true"),
			SortOrder:  atoiOr(o.SortOrder, 0),
			Price:      decimalOrNil(o.OptionPrice),
			PriceType:  o.OptionPriceType,
			SKU:        o.OptionSKU,
		}
		for _, v := range o.OptionValues {
			opt.Values = append(opt.Values, optionValue{
				Title:     v.Title,
				Price:     decimalOrNil(v.Price),
				PriceType: v.PriceType,
				SKU:       v.SKU,
				SortOrder: atoiOr(v.SortOrder, 0),
			})
		}
		out = append(out, opt)
	}
	return s.putProduct(ctx, s.scope, productEntity{SKU: sku, Options: out})
}

func (s *Session) syncVariants(ctx context.Context, sku string, data []byte) (string, error) {
	var set catalog.VariantSet
	if err := decodeExtension(sku, data, &set); err != nil {
		return "", err
	}
	path := fmt.Sprintf("/rest/%s/V1/configurable-products/%s/child", storeCodeAll, url.PathEscape(sku))
	for _, v := range set.Variants {
		err := s.client.doRequest(ctx, http.MethodPost, path, nil, map[string]string{"childSku": v.VariantSKU}, nil)
		if isAlreadyLinked(err) {
			s.logger.Debug("Variant already linked", zap.String("sku", sku), zap.String("variant_sku", v.VariantSKU))
			continue
		}
		if err != nil {
			return "", fmt.Errorf("connector: link variant %s to %s: %w", v.VariantSKU, sku, err)
		}
	}
	return s.productID(ctx, sku)
}

// isAlreadyLinked reports the destination's answer to relinking a child.
func isAlreadyLinked(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusBadRequest && strings.Contains(strings.ToLower(apiErr.Message), "already attached")
}

// Close releases the tunnel and idle connections. It is safe to call twice.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.client.httpClient.CloseIdleConnections()
	if s.closeFunc != nil {
		return s.closeFunc()
	}
	return nil
}

func atoiOr(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}

func decimalOrNil(s string) any {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return json.Number(d.String())
}

var _ integration.Session = (*Session)(nil)
