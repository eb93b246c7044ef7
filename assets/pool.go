// Package assets serves images from a local directory in round-robin order.
package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// StateFile holds the rotation cursor, next to the images it indexes.
const StateFile = ".rotation_state.json"

// ErrEmptyPool is returned when the directory holds no usable image.
var ErrEmptyPool = errors.New("asset pool is empty")

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".gif":  true,
}

// ImageAsset is binary image content plus the filename used on upload.
type ImageAsset struct {
	Data     []byte
	Filename string
}

// Pool hands out the images of one directory in name order, wrapping around.
// The cursor survives restarts through StateFile.
type Pool struct {
	dir string
	mu  sync.Mutex
}

func NewPool(dir string) *Pool {
	return &Pool{dir: dir}
}

func (p *Pool) Dir() string { return p.dir }

// Next returns the image at the persisted cursor and advances it.
func (p *Pool) Next() (ImageAsset, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	names, err := p.list()
	if err != nil {
		return ImageAsset{}, err
	}
	if len(names) == 0 {
		return ImageAsset{}, fmt.Errorf("%s: %w", p.dir, ErrEmptyPool)
	}

	state := p.readState()
	idx := int(gjson.GetBytes(state, "next").Int())
	if idx < 0 || idx >= len(names) {
		idx = 0
	}
	name := names[idx]

	data, err := os.ReadFile(filepath.Join(p.dir, name))
	if err != nil {
		return ImageAsset{}, fmt.Errorf("read asset %s: %w", name, err)
	}

	state, err = sjson.SetBytes(state, "next", (idx+1)%len(names))
	if err == nil {
		state, err = sjson.SetBytes(state, "last", name)
	}
	if err != nil {
		return ImageAsset{}, fmt.Errorf("encode rotation state: %w", err)
	}
	if err := os.WriteFile(filepath.Join(p.dir, StateFile), state, 0o644); err != nil {
		return ImageAsset{}, fmt.Errorf("write rotation state: %w", err)
	}
	return ImageAsset{Data: data, Filename: name}, nil
}

// readState tolerates a missing or corrupt state file by starting over.
func (p *Pool) readState() []byte {
	data, err := os.ReadFile(filepath.Join(p.dir, StateFile))
	if err != nil || !gjson.ValidBytes(data) {
		return []byte("{}")
	}
	return data
}

func (p *Pool) list() ([]string, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list asset pool %s: %w", p.dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
