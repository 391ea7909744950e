package catalogs

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrInvalidReference is returned by lookups that require an existing
// business or manager id.
var ErrInvalidReference = errors.New("invalid reference")

// Milestones are owned-unit thresholds; each one reached halves the cycle time.
var Milestones = []int{25, 50, 100, 200, 300, 400}

type Catalogs struct {
	Businesses BusinessCatalog
	Managers   ManagerCatalog
}

type BusinessCatalog struct {
	Order  []string
	ByID   map[string]BusinessDef
	Digest string
}

type BusinessDef struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Image          string  `json:"image,omitempty"`
	AutoUnlocked   bool    `json:"auto_unlocked,omitempty"`
	InitialCost    float64 `json:"initial_cost"`
	Coefficient    float64 `json:"coefficient"`
	InitialTime    float64 `json:"initial_time"` // seconds
	InitialRevenue float64 `json:"initial_revenue"`
}

type ManagerCatalog struct {
	Order      []string
	ByID       map[string]ManagerDef
	ByBusiness map[string]string
	Digest     string
}

type ManagerDef struct {
	ID           string  `json:"id"`
	AutoUnlocked bool    `json:"auto_unlocked,omitempty"`
	BusinessID   string  `json:"business_id"`
	Name         string  `json:"name,omitempty"`
	Image        string  `json:"image,omitempty"`
	Cost         float64 `json:"cost"`
}

//go:embed defaults/*.json
var defaultsFS embed.FS

//go:embed schemas/*.json
var schemasFS embed.FS

var (
	schemaOnce        sync.Once
	businessesSchema  *jsonschema.Schema
	managersSchema    *jsonschema.Schema
	schemaCompileErr  error
	defaultOnce       sync.Once
	defaultCatalogs   *Catalogs
	defaultCatalogErr error
)

// Default returns the built-in catalog. It panics if the embedded data is
// inconsistent, which is a build defect.
func Default() *Catalogs {
	defaultOnce.Do(func() {
		sub, err := fs.Sub(defaultsFS, "defaults")
		if err != nil {
			defaultCatalogErr = err
			return
		}
		defaultCatalogs, defaultCatalogErr = LoadFS(sub)
	})
	if defaultCatalogErr != nil {
		panic(fmt.Sprintf("catalogs: embedded defaults: %v", defaultCatalogErr))
	}
	return defaultCatalogs
}

// Load reads businesses.json and managers.json from configDir. An empty
// configDir selects the built-in catalog.
func Load(configDir string) (*Catalogs, error) {
	if strings.TrimSpace(configDir) == "" {
		return Default(), nil
	}
	return LoadFS(os.DirFS(configDir))
}

func LoadFS(fsys fs.FS) (*Catalogs, error) {
	if err := compileSchemas(); err != nil {
		return nil, err
	}

	braw, err := fs.ReadFile(fsys, "businesses.json")
	if err != nil {
		return nil, err
	}
	if err := validateRaw(businessesSchema, braw); err != nil {
		return nil, fmt.Errorf("businesses.json: %w", err)
	}
	var bdefs []BusinessDef
	if err := json.Unmarshal(braw, &bdefs); err != nil {
		return nil, fmt.Errorf("businesses.json: %w", err)
	}

	mraw, err := fs.ReadFile(fsys, "managers.json")
	if err != nil {
		return nil, err
	}
	if err := validateRaw(managersSchema, mraw); err != nil {
		return nil, fmt.Errorf("managers.json: %w", err)
	}
	var mdefs []ManagerDef
	if err := json.Unmarshal(mraw, &mdefs); err != nil {
		return nil, fmt.Errorf("managers.json: %w", err)
	}

	c, err := New(bdefs, mdefs)
	if err != nil {
		return nil, err
	}
	c.Businesses.Digest = sha256Hex(braw)
	c.Managers.Digest = sha256Hex(mraw)
	return c, nil
}

// New builds a catalog from definitions, keeping their order.
func New(businesses []BusinessDef, managers []ManagerDef) (*Catalogs, error) {
	var c Catalogs
	c.Businesses.ByID = make(map[string]BusinessDef, len(businesses))
	for _, b := range businesses {
		if b.ID == "" {
			return nil, fmt.Errorf("business: empty id")
		}
		if _, dup := c.Businesses.ByID[b.ID]; dup {
			return nil, fmt.Errorf("business %s: duplicate id", b.ID)
		}
		if !(b.Coefficient > 1) {
			return nil, fmt.Errorf("business %s: coefficient must be > 1, got %v", b.ID, b.Coefficient)
		}
		if !(b.InitialTime > 0) {
			return nil, fmt.Errorf("business %s: initial_time must be > 0, got %v", b.ID, b.InitialTime)
		}
		if b.InitialCost < 0 || b.InitialRevenue < 0 {
			return nil, fmt.Errorf("business %s: negative cost or revenue", b.ID)
		}
		c.Businesses.ByID[b.ID] = b
		c.Businesses.Order = append(c.Businesses.Order, b.ID)
	}

	c.Managers.ByID = make(map[string]ManagerDef, len(managers))
	c.Managers.ByBusiness = make(map[string]string, len(managers))
	for _, m := range managers {
		if m.ID == "" {
			return nil, fmt.Errorf("manager: empty id")
		}
		if _, dup := c.Managers.ByID[m.ID]; dup {
			return nil, fmt.Errorf("manager %s: duplicate id", m.ID)
		}
		if _, ok := c.Businesses.ByID[m.BusinessID]; !ok {
			return nil, fmt.Errorf("manager %s: unknown business %q", m.ID, m.BusinessID)
		}
		if other, taken := c.Managers.ByBusiness[m.BusinessID]; taken {
			return nil, fmt.Errorf("manager %s: business %s already managed by %s", m.ID, m.BusinessID, other)
		}
		if m.Cost < 0 {
			return nil, fmt.Errorf("manager %s: negative cost", m.ID)
		}
		c.Managers.ByID[m.ID] = m
		c.Managers.ByBusiness[m.BusinessID] = m.ID
		c.Managers.Order = append(c.Managers.Order, m.ID)
	}
	return &c, nil
}

func (c *Catalogs) Business(id string) (BusinessDef, bool) {
	b, ok := c.Businesses.ByID[id]
	return b, ok
}

func (c *Catalogs) Manager(id string) (ManagerDef, bool) {
	m, ok := c.Managers.ByID[id]
	return m, ok
}

func (c *Catalogs) BusinessIDs() []string {
	return append([]string(nil), c.Businesses.Order...)
}

func (c *Catalogs) ManagerIDs() []string {
	return append([]string(nil), c.Managers.Order...)
}

func (c *Catalogs) AutoUnlockedBusinessIDs() []string {
	var out []string
	for _, id := range c.Businesses.Order {
		if c.Businesses.ByID[id].AutoUnlocked {
			out = append(out, id)
		}
	}
	return out
}

func (c *Catalogs) AutoUnlockedManagerIDs() []string {
	var out []string
	for _, id := range c.Managers.Order {
		if c.Managers.ByID[id].AutoUnlocked {
			out = append(out, id)
		}
	}
	return out
}

// ManagerForBusiness returns the id of the manager bound to businessID.
func (c *Catalogs) ManagerForBusiness(businessID string) (string, bool) {
	id, ok := c.Managers.ByBusiness[businessID]
	return id, ok
}

// TimeToProfit returns the cycle duration in seconds for a business owning
// amount units. Every milestone reached halves the initial time.
func (c *Catalogs) TimeToProfit(businessID string, amount int) (float64, error) {
	b, ok := c.Businesses.ByID[businessID]
	if !ok {
		return 0, fmt.Errorf("time to profit %q: %w", businessID, ErrInvalidReference)
	}
	multiplier := 1.0
	for _, m := range Milestones {
		if amount < m {
			break
		}
		multiplier *= 0.5
	}
	return b.InitialTime * multiplier, nil
}

// NextMilestone returns the first milestone above amount, or the last
// milestone once all have been reached.
func (c *Catalogs) NextMilestone(businessID string, amount int) (int, error) {
	if _, ok := c.Businesses.ByID[businessID]; !ok {
		return 0, fmt.Errorf("next milestone %q: %w", businessID, ErrInvalidReference)
	}
	for _, m := range Milestones {
		if amount < m {
			return m, nil
		}
	}
	return Milestones[len(Milestones)-1], nil
}

// UpgradeCost is initial_cost * coefficient^amount.
func (c *Catalogs) UpgradeCost(businessID string, amount int) (float64, error) {
	b, ok := c.Businesses.ByID[businessID]
	if !ok {
		return 0, fmt.Errorf("upgrade cost %q: %w", businessID, ErrInvalidReference)
	}
	return b.InitialCost * math.Pow(b.Coefficient, float64(amount)), nil
}

// Profit is the revenue of one completed cycle: amount * initial_revenue.
func (c *Catalogs) Profit(businessID string, amount int) (float64, error) {
	b, ok := c.Businesses.ByID[businessID]
	if !ok {
		return 0, fmt.Errorf("profit %q: %w", businessID, ErrInvalidReference)
	}
	return float64(amount) * b.InitialRevenue, nil
}

func compileSchemas() error {
	schemaOnce.Do(func() {
		businessesSchema, schemaCompileErr = compileEmbedded("businesses.schema.json")
		if schemaCompileErr != nil {
			return
		}
		managersSchema, schemaCompileErr = compileEmbedded("managers.schema.json")
	})
	return schemaCompileErr
}

func compileEmbedded(name string) (*jsonschema.Schema, error) {
	raw, err := schemasFS.ReadFile("schemas/" + name)
	if err != nil {
		return nil, err
	}
	s, err := jsonschema.CompileString(name, string(raw))
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}
	return s, nil
}

func validateRaw(s *jsonschema.Schema, raw []byte) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	return s.Validate(doc)
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
