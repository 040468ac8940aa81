package config

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/cellsim/pkg/ranges"
	"github.com/charlie0129/cellsim/pkg/session"
	"github.com/charlie0129/cellsim/pkg/utils/ptr"
)

var (
	defaultFileConfig = &RawFileConfig{
		Listen:           ptr.To("127.0.0.1:8501"),
		DefaultCount:     ptr.To(session.DefaultCount),
		DefaultPrecision: ptr.To(ranges.DefaultPrecision),
		MaxCount:         ptr.To(session.MaxCount),
		// Browser tabs that are closed never say goodbye. Drop their cells
		// after a day of inactivity.
		SessionTTLMinutes: ptr.To(24 * 60),
		ChartWidth:        ptr.To(640),
		ChartHeight:       ptr.To(400),
	}
)

var _ Config = &File{}

type File struct {
	c        *RawFileConfig
	mu       *sync.RWMutex
	filepath string
}

func NewFile(configPath string) (*File, error) {
	f := &File{
		filepath: configPath,
		mu:       &sync.RWMutex{},
	}
	err := f.Load()
	if err != nil {
		return nil, err
	}

	return f, nil
}

func NewFileFromConfig(c *RawFileConfig, configPath string) *File {
	if c == nil {
		c = &RawFileConfig{}
	}

	f := &File{
		c:        c,
		mu:       &sync.RWMutex{},
		filepath: configPath,
	}

	return f
}

type RawFileConfig struct {
	Listen            *string `json:"listen,omitempty"`
	DefaultCount      *int    `json:"defaultCount,omitempty"`
	DefaultPrecision  *int    `json:"defaultPrecision,omitempty"`
	MaxCount          *int    `json:"maxCount,omitempty"`
	SessionTTLMinutes *int    `json:"sessionTTLMinutes,omitempty"`
	ChartWidth        *int    `json:"chartWidth,omitempty"`
	ChartHeight       *int    `json:"chartHeight,omitempty"`
}

func NewRawFileConfigFromConfig(c Config) (*RawFileConfig, error) {
	if c == nil {
		return nil, pkgerrors.New("config is nil")
	}

	rawConfig := &RawFileConfig{
		Listen:            ptr.To(c.Listen()),
		DefaultCount:      ptr.To(c.DefaultCount()),
		DefaultPrecision:  ptr.To(c.DefaultPrecision()),
		MaxCount:          ptr.To(c.MaxCount()),
		SessionTTLMinutes: ptr.To(c.SessionTTLMinutes()),
		ChartWidth:        ptr.To(c.ChartWidth()),
		ChartHeight:       ptr.To(c.ChartHeight()),
	}

	return rawConfig, nil
}

// Validate checks the values that are set.
func (r *RawFileConfig) Validate() error {
	maxCount := ptr.Deref(r.MaxCount, *defaultFileConfig.MaxCount)
	if maxCount < session.MinCount || maxCount > session.MaxCount {
		return pkgerrors.Errorf("maxCount must be between %d and %d, got %d", session.MinCount, session.MaxCount, maxCount)
	}
	if r.DefaultCount != nil && (*r.DefaultCount < session.MinCount || *r.DefaultCount > maxCount) {
		return pkgerrors.Errorf("defaultCount must be between %d and %d, got %d", session.MinCount, maxCount, *r.DefaultCount)
	}
	if r.DefaultPrecision != nil {
		if err := ranges.ValidatePrecision(*r.DefaultPrecision); err != nil {
			return pkgerrors.Wrap(err, "defaultPrecision")
		}
	}
	if r.Listen != nil && strings.TrimSpace(*r.Listen) == "" {
		return pkgerrors.New("listen must not be empty")
	}
	for name, v := range map[string]*int{"chartWidth": r.ChartWidth, "chartHeight": r.ChartHeight} {
		if v != nil && (*v < 100 || *v > 4000) {
			return pkgerrors.Errorf("%s must be between 100 and 4000, got %d", name, *v)
		}
	}
	return nil
}

func (f *File) get() *RawFileConfig {
	if f.c == nil {
		panic("config is nil")
	}
	return f.c
}

func (f *File) Listen() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return ptr.Deref(f.get().Listen, *defaultFileConfig.Listen)
}

func (f *File) DefaultCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return ptr.Deref(f.get().DefaultCount, *defaultFileConfig.DefaultCount)
}

func (f *File) DefaultPrecision() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return ptr.Deref(f.get().DefaultPrecision, *defaultFileConfig.DefaultPrecision)
}

func (f *File) MaxCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return ptr.Deref(f.get().MaxCount, *defaultFileConfig.MaxCount)
}

func (f *File) SessionTTLMinutes() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return ptr.Deref(f.get().SessionTTLMinutes, *defaultFileConfig.SessionTTLMinutes)
}

func (f *File) ChartWidth() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return ptr.Deref(f.get().ChartWidth, *defaultFileConfig.ChartWidth)
}

func (f *File) ChartHeight() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return ptr.Deref(f.get().ChartHeight, *defaultFileConfig.ChartHeight)
}

func (f *File) SetDefaultCount(i int) {
	if i < session.MinCount || i > session.MaxCount {
		panic("default count must be between 1 and 10000")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.get().DefaultCount = &i
}

func (f *File) SetDefaultPrecision(i int) {
	if ranges.ValidatePrecision(i) != nil {
		panic("default precision must be between 0 and 4")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.get().DefaultPrecision = &i
}

func (f *File) SetMaxCount(i int) {
	if i < session.MinCount || i > session.MaxCount {
		panic("max count must be between 1 and 10000")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.get().MaxCount = &i
}

func (f *File) SetSessionTTLMinutes(i int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.get().SessionTTLMinutes = &i
}

func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fp, err := os.Open(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			// If the file does not exist, return the empty config.
			// Do not make f.c a nil.
			f.c = &RawFileConfig{}
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	// Since we want to tell if the file is empty, using json.Decoder will
	// not work.
	b, err := io.ReadAll(fp)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read file %s", f.filepath)
	}

	if strings.TrimSpace(string(b)) == "" {
		f.c = &RawFileConfig{}
		return nil
	}

	conf := RawFileConfig{}
	err = json.Unmarshal(b, &conf)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal config from file %s", f.filepath)
	}
	if err := conf.Validate(); err != nil {
		return pkgerrors.Wrapf(err, "invalid config in file %s", f.filepath)
	}
	f.c = &conf

	return nil
}

func (f *File) Save() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		return pkgerrors.New("config is nil")
	}

	fp, err := os.OpenFile(f.filepath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	enc := json.NewEncoder(fp)
	enc.SetIndent("", "  ")
	err = enc.Encode(f.c)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to encode config to file %s", f.filepath)
	}

	return nil
}

// SessionDefaults returns the controls a new session starts with.
func SessionDefaults(c Config) session.Controls {
	ctl := session.DefaultControls()
	ctl.Count = c.DefaultCount()
	ctl.Precision = c.DefaultPrecision()
	if ctl.Count > c.MaxCount() {
		ctl.Count = c.MaxCount()
	}
	return ctl
}

func (f *File) LogrusFields() logrus.Fields {
	return logrus.Fields{
		"listen":            f.Listen(),
		"defaultCount":      f.DefaultCount(),
		"defaultPrecision":  f.DefaultPrecision(),
		"maxCount":          f.MaxCount(),
		"sessionTTLMinutes": f.SessionTTLMinutes(),
		"chartWidth":        f.ChartWidth(),
		"chartHeight":       f.ChartHeight(),
	}
}
