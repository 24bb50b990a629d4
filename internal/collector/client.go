package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"meshview/internal/domain"
)

// Client reads the mesh controller's HTTP API. It implements Source.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// NewClient creates a controller client. The token is sent as a bearer
// credential on every request.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
}

// wire types, matching the controller's JSON

// nwkAddr accepts both numeric and "0x1A2B" hex-string short addresses,
// which the controller emits interchangeably.
type nwkAddr uint16

func (a *nwkAddr) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		base := 10
		if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
			s = s[2:]
			base = 16
		}
		v, err := strconv.ParseUint(s, base, 16)
		if err != nil {
			return fmt.Errorf("invalid nwk address %q: %w", s, err)
		}
		*a = nwkAddr(v)
		return nil
	}

	var v uint16
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*a = nwkAddr(v)
	return nil
}

type wireNeighbor struct {
	IEEE         string  `json:"ieee"`
	NWK          nwkAddr `json:"nwk"`
	LQI          int     `json:"lqi"`
	Relationship string  `json:"relationship"`
	DeviceType   string  `json:"device_type"`
}

type wireRoute struct {
	DestNWK    nwkAddr `json:"dest_nwk"`
	NextHopNWK nwkAddr `json:"next_hop"`
	Status     string  `json:"route_status"`
}

type wireDevice struct {
	IEEE          string         `json:"ieee"`
	NWK           nwkAddr        `json:"nwk"`
	Name          string         `json:"name"`
	UserGivenName string         `json:"user_given_name"`
	Manufacturer  string         `json:"manufacturer"`
	Model         string         `json:"model"`
	DeviceType    string         `json:"device_type"`
	LastSeen      *time.Time     `json:"last_seen"`
	Neighbors     []wireNeighbor `json:"neighbors"`
	Routes        []wireRoute    `json:"routes"`
}

type wireRegistryEntry struct {
	ID   string `json:"id"`
	IEEE string `json:"ieee"`
}

type wireEntity struct {
	EntityID string `json:"entity_id"`
	Name     string `json:"name"`
	State    string `json:"state"`
	DeviceID string `json:"device_id"`
}

// roleFromDeviceType maps controller device types onto mesh roles
func roleFromDeviceType(t string) domain.Role {
	switch t {
	case "Coordinator":
		return domain.RoleRoot
	case "Router":
		return domain.RoleRelay
	case "EndDevice":
		return domain.RoleLeaf
	default:
		return domain.RoleUnknown
	}
}

// toNode converts a wire device into the domain record, deriving the
// declared parent from the device's own neighbor table: the strongest
// Parent-relationship entry wins, with IEEE order settling exact ties.
func (d *wireDevice) toNode() domain.Node {
	name := d.UserGivenName
	if name == "" {
		name = d.Name
	}
	if name == "" {
		name = d.IEEE
	}

	node := domain.Node{
		IEEE:         d.IEEE,
		NWK:          uint16(d.NWK),
		Role:         roleFromDeviceType(d.DeviceType),
		Name:         name,
		Manufacturer: d.Manufacturer,
		Model:        d.Model,
		LastSeen:     d.LastSeen,
	}

	for _, n := range d.Neighbors {
		node.Neighbors = append(node.Neighbors, domain.NeighborObservation{
			ObservedIEEE: n.IEEE,
			ObservedNWK:  uint16(n.NWK),
			LQI:          n.LQI,
			Relationship: n.Relationship,
			ObservedRole: roleFromDeviceType(n.DeviceType),
		})
	}

	for _, r := range d.Routes {
		node.Routes = append(node.Routes, domain.RouteEntry{
			DestNWK:    uint16(r.DestNWK),
			NextHopNWK: uint16(r.NextHopNWK),
			Status:     r.Status,
		})
	}

	node.ParentIEEE = declaredParent(node.Neighbors)
	return node
}

func declaredParent(neighbors []domain.NeighborObservation) string {
	candidates := make([]domain.NeighborObservation, 0, 1)
	for _, n := range neighbors {
		if n.Relationship == domain.RelationshipParent && n.ObservedIEEE != "" {
			candidates = append(candidates, n)
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].LQI != candidates[j].LQI {
			return candidates[i].LQI > candidates[j].LQI
		}
		return candidates[i].ObservedIEEE < candidates[j].ObservedIEEE
	})
	return candidates[0].ObservedIEEE
}

// Source implementation

// ListDevices returns the identities of all devices the controller knows
func (c *Client) ListDevices(ctx context.Context) ([]DeviceRef, error) {
	var devices []struct {
		IEEE string `json:"ieee"`
	}
	if err := c.get(ctx, "/api/mesh/devices", &devices); err != nil {
		return nil, err
	}

	refs := make([]DeviceRef, 0, len(devices))
	for _, d := range devices {
		if d.IEEE != "" {
			refs = append(refs, DeviceRef{IEEE: d.IEEE})
		}
	}
	return refs, nil
}

// GetDevice returns one device's full facts
func (c *Client) GetDevice(ctx context.Context, ieee string) (domain.Node, error) {
	var device wireDevice
	if err := c.get(ctx, "/api/mesh/devices/"+ieee, &device); err != nil {
		return domain.Node{}, err
	}
	if device.IEEE == "" {
		device.IEEE = ieee
	}
	return device.toNode(), nil
}

// ListRegistry returns the device registry entries
func (c *Client) ListRegistry(ctx context.Context) ([]domain.RegistryEntry, error) {
	var entries []wireRegistryEntry
	if err := c.get(ctx, "/api/mesh/registry", &entries); err != nil {
		return nil, err
	}

	out := make([]domain.RegistryEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, domain.RegistryEntry{ID: e.ID, IEEE: e.IEEE})
	}
	return out, nil
}

// ListEntities returns the live entity states
func (c *Client) ListEntities(ctx context.Context) ([]domain.Entity, error) {
	var entities []wireEntity
	if err := c.get(ctx, "/api/mesh/entities", &entities); err != nil {
		return nil, err
	}

	out := make([]domain.Entity, 0, len(entities))
	for _, e := range entities {
		out = append(out, domain.Entity{
			EntityID: e.EntityID,
			Name:     e.Name,
			State:    e.State,
			DeviceID: e.DeviceID,
		})
	}
	return out, nil
}

// TriggerScan asks the controller to start a topology scan
func (c *Client) TriggerScan(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/mesh/topology/scan", nil)
}

// Ping probes controller liveness
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/ping", nil)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, out)
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}
