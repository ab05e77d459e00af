// Package project implements the project bundle document and the
// interior-mutable shared handles it hands out: a UI-style caller mutating
// a project's named-point set or a single image's camera while another
// client reads it concurrently.
package project

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/meridian-optics/photocal/internal/camera"
	"github.com/meridian-optics/photocal/internal/points"
)

// Handle is a one-writer-many-readers interior-mutable cell around a value
// of type T. A second concurrent exclusive borrow is a programming error,
// so BorrowMut uses TryLock and panics on collision rather than blocking.
type Handle[T any] struct {
	id    uuid.UUID
	mu    sync.RWMutex
	value T
}

// NewHandle wraps v in a fresh Handle, tagged with a random ID for
// diagnostic log correlation across concurrent borrowers.
func NewHandle[T any](v T) *Handle[T] {
	return &Handle[T]{id: uuid.New(), value: v}
}

// ID returns the handle's diagnostic instance ID.
func (h *Handle[T]) ID() uuid.UUID { return h.id }

// Borrow takes a shared (read) borrow of h's value, returning it along
// with a release function the caller must call exactly once. Any number
// of readers may hold a Borrow concurrently.
func (h *Handle[T]) Borrow() (T, func()) {
	h.mu.RLock()
	return h.value, h.mu.RUnlock
}

// BorrowMut takes the exclusive (write) borrow of h's value, returning a
// pointer the caller may mutate through and a release function. It panics
// if another exclusive or shared borrow is already outstanding, rather
// than blocking; a colliding mutable borrow is a programming error, not a
// condition to wait out.
func (h *Handle[T]) BorrowMut() (*T, func()) {
	if !h.mu.TryLock() {
		panic(fmt.Sprintf("project: colliding exclusive borrow of handle %s", h.id))
	}
	return &h.value, h.mu.Unlock
}

// Set replaces h's value under an exclusive borrow. Convenience over
// BorrowMut for callers that only want to swap the whole value.
func (h *Handle[T]) Set(v T) {
	p, release := h.BorrowMut()
	defer release()
	*p = v
}

// CIP is one image's entry in a project: its camera instance and point
// mappings, each independently shared via a Handle so a rendering command
// can read the camera while a UI command edits the mappings.
type CIP struct {
	Image    string
	Camera   *Handle[*camera.Instance]
	Mappings *Handle[*points.PointMappingSet]
}

// Project is the live, in-memory bundle of a camera database, a shared
// named-point set, and one CIP per image. The camera database is treated
// as read-mostly reference data and held directly; NPS and each CIP's
// camera/mappings are interior-mutable handles.
type Project struct {
	id  uuid.UUID
	CDB *camera.Database
	NPS *Handle[*points.NamedPointSet]

	mu   sync.Mutex // guards CIPs slice membership, not CIP contents
	CIPs []*CIP
}

// New builds a Project around an already-loaded camera database and named
// point set. Loading those two documents themselves uses
// camera.LoadDatabase / points.LoadNamedPointSet; wiring the referenced
// files on disk together is left to the caller that owns file I/O.
func New(cdb *camera.Database, nps *points.NamedPointSet) *Project {
	return &Project{id: uuid.New(), CDB: cdb, NPS: NewHandle(nps)}
}

// ID returns the project's diagnostic instance ID.
func (p *Project) ID() uuid.UUID { return p.id }

// AddImage appends a new CIP wrapping c and mappings, and returns it.
func (p *Project) AddImage(image string, c *camera.Instance, mappings *points.PointMappingSet) *CIP {
	cip := &CIP{Image: image, Camera: NewHandle(c), Mappings: NewHandle(mappings)}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CIPs = append(p.CIPs, cip)
	return cip
}

// cipDoc mirrors one entry of the project document's "cips" array:
// references to the per-image camera description file, point-mapping-set
// file, and source image, by path.
type cipDoc struct {
	CameraFile string `json:"camera_file"`
	PMSFile    string `json:"pms_file"`
	Image      string `json:"image"`
}

// Doc is the on-disk project document shape: paths to the camera database
// and named-point-set files, plus the per-image CIP references. Doc itself
// carries no loaded data — resolving the referenced files into a live
// Project is left to the caller (the external collaborator that owns file
// I/O), which decodes each referenced document with its own loader
// (camera.LoadDatabase, points.LoadNamedPointSet,
// points.LoadPointMappingSet).
type Doc struct {
	CDB  string   `json:"cdb"`
	NPS  string   `json:"nps"`
	CIPs []cipDoc `json:"cips"`
}

// CIPRef is one exported (camera_file, pms_file, image) reference from a
// parsed Doc.
type CIPRef struct {
	CameraFile string
	PMSFile    string
	Image      string
}

// CIPRefs returns d's per-image file references.
func (d *Doc) CIPRefs() []CIPRef {
	out := make([]CIPRef, len(d.CIPs))
	for i, c := range d.CIPs {
		out[i] = CIPRef{CameraFile: c.CameraFile, PMSFile: c.PMSFile, Image: c.Image}
	}
	return out
}

// LoadDoc parses a project document.
func LoadDoc(data []byte) (*Doc, error) {
	var d Doc
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("project: decode document: %w", err)
	}
	return &d, nil
}

// Save serializes d to the project document JSON format.
func (d *Doc) Save() ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("project: encode document: %w", err)
	}
	return data, nil
}
