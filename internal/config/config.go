// Package config implements reading and writing of the syncspirit
// configuration file: process-level options plus the declarative folder
// and device records used to seed the cluster at startup.
package config

import (
	"encoding/xml"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strconv"

	"github.com/basiliscos/syncspirit-go/internal/model"
	"github.com/basiliscos/syncspirit-go/internal/protocol"
)

const CurrentVersion = 1

type Configuration struct {
	Version int                   `xml:"version,attr"`
	Folders []FolderConfiguration `xml:"folder"`
	Devices []DeviceConfiguration `xml:"device"`
	Options OptionsConfiguration  `xml:"options"`
	XMLName xml.Name              `xml:"configuration" json:"-"`
}

type FolderConfiguration struct {
	ID              string                      `xml:"id,attr"`
	Label           string                      `xml:"label,attr,omitempty"`
	Path            string                      `xml:"path,attr"`
	Devices         []FolderDeviceConfiguration `xml:"device"`
	ReadOnly        bool                        `xml:"ro,attr"`
	IgnorePerms     bool                        `xml:"ignorePerms,attr"`
	IgnoreDelete    bool                        `xml:"ignoreDelete,attr"`
	RescanIntervalS int                         `xml:"rescanIntervalS,attr" default:"60"`
	PullOrder       string                      `xml:"pullOrder,attr" default:"alphabetic"`
	Paused          bool                        `xml:"paused,attr"`

	Invalid string `xml:"-"` // set at runtime on a configuration error, not saved
}

type FolderDeviceConfiguration struct {
	DeviceID protocol.DeviceID `xml:"id,attr"`
}

type DeviceConfiguration struct {
	DeviceID   protocol.DeviceID `xml:"id,attr"`
	Name       string            `xml:"name,attr,omitempty"`
	Addresses  []string          `xml:"address,omitempty"`
	Introducer bool              `xml:"introducer,attr"`
}

type OptionsConfiguration struct {
	ListenAddresses    []string `xml:"listenAddress" default:"0.0.0.0:22000"`
	MaxSendKbps        int      `xml:"maxSendKbps"`
	MaxRecvKbps        int      `xml:"maxRecvKbps"`
	ReconnectIntervalS int      `xml:"reconnectionIntervalS" default:"60"`
	MaxOutstandingReqs int      `xml:"maxOutstandingRequests" default:"16"`
	HasherWorkers      int      `xml:"hasherWorkers" default:"4"`
	FileIOCacheSize    int      `xml:"fileIOCacheSize" default:"64"`
	LogLevel           string   `xml:"logLevel" default:"info"`
	LogFormat          string   `xml:"logFormat" default:"text"`
}

// New returns a default configuration seeded with the local device.
func New(myID protocol.DeviceID) Configuration {
	var cfg Configuration
	cfg.Version = CurrentVersion

	setDefaults(&cfg.Options)
	cfg.prepare(myID)
	return cfg
}

func ReadXML(r io.Reader, myID protocol.DeviceID) (Configuration, error) {
	var cfg Configuration
	setDefaults(&cfg.Options)

	err := xml.NewDecoder(r).Decode(&cfg)
	if err != nil {
		return cfg, err
	}
	cfg.prepare(myID)
	return cfg, nil
}

func (cfg *Configuration) WriteXML(w io.Writer) error {
	e := xml.NewEncoder(w)
	e.Indent("", "    ")
	if err := e.Encode(cfg); err != nil {
		return err
	}
	_, err := w.Write([]byte("\n"))
	return err
}

// prepare fills in missing folder IDs, renames ID collisions (last
// occurrence wins, matching the cluster_update apply rule), and ensures
// myID is present in the device list and every folder's device list.
func (cfg *Configuration) prepare(myID protocol.DeviceID) {
	if cfg.Folders == nil {
		cfg.Folders = []FolderConfiguration{}
	}

	seen := map[string]*FolderConfiguration{}
	var uniqueCounter int
	for i := range cfg.Folders {
		f := &cfg.Folders[i]
		if f.RescanIntervalS == 0 {
			f.RescanIntervalS = 60
		}
		if f.PullOrder == "" {
			f.PullOrder = "alphabetic"
		}
		if f.Path == "" {
			f.Invalid = "no path configured"
			continue
		}
		if f.ID == "" {
			f.ID = "default"
		}
		if prior, ok := seen[f.ID]; ok {
			uniqueCounter++
			prior.ID = fmt.Sprintf("%s~%d", prior.ID, uniqueCounter)
		}
		seen[f.ID] = f
	}

	existing := make(map[protocol.DeviceID]bool, len(cfg.Devices))
	for _, d := range cfg.Devices {
		existing[d.DeviceID] = true
	}
	if !existing[myID] {
		cfg.Devices = append(cfg.Devices, DeviceConfiguration{DeviceID: myID})
		existing[myID] = true
	}
	sort.Slice(cfg.Devices, func(i, j int) bool {
		return cfg.Devices[i].DeviceID.Compare(cfg.Devices[j].DeviceID) < 0
	})

	for i := range cfg.Folders {
		cfg.Folders[i].Devices = ensureDevicePresent(cfg.Folders[i].Devices, myID)
		cfg.Folders[i].Devices = ensureKnownDevices(cfg.Folders[i].Devices, existing)
		sort.Slice(cfg.Folders[i].Devices, func(a, b int) bool {
			return cfg.Folders[i].Devices[a].DeviceID.Compare(cfg.Folders[i].Devices[b].DeviceID) < 0
		})
	}

	for i := range cfg.Devices {
		if len(cfg.Devices[i].Addresses) == 0 {
			cfg.Devices[i].Addresses = []string{"dynamic"}
		}
	}
}

func ensureDevicePresent(devices []FolderDeviceConfiguration, myID protocol.DeviceID) []FolderDeviceConfiguration {
	for _, d := range devices {
		if d.DeviceID.Equals(myID) {
			return devices
		}
	}
	return append(devices, FolderDeviceConfiguration{DeviceID: myID})
}

func ensureKnownDevices(devices []FolderDeviceConfiguration, known map[protocol.DeviceID]bool) []FolderDeviceConfiguration {
	out := devices[:0]
	seen := make(map[protocol.DeviceID]bool, len(devices))
	for _, d := range devices {
		if !known[d.DeviceID] || seen[d.DeviceID] {
			continue
		}
		seen[d.DeviceID] = true
		out = append(out, d)
	}
	return out
}

// PullOrderValue parses the folder's configured pull order, defaulting to
// alphabetic on an unrecognized value.
func (f FolderConfiguration) PullOrderValue() model.PullOrder {
	switch f.PullOrder {
	case "random":
		return model.PullOrderRandom
	case "largest":
		return model.PullOrderLargest
	case "smallest":
		return model.PullOrderSmallest
	case "oldest":
		return model.PullOrderOldest
	case "newest":
		return model.PullOrderNewest
	default:
		return model.PullOrderAlphabetic
	}
}

func setDefaults(data interface{}) error {
	s := reflect.ValueOf(data).Elem()
	t := s.Type()

	for i := 0; i < s.NumField(); i++ {
		f := s.Field(i)
		v := t.Field(i).Tag.Get("default")
		if v == "" {
			continue
		}
		switch f.Interface().(type) {
		case string:
			f.SetString(v)
		case int:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return err
			}
			f.SetInt(n)
		case bool:
			f.SetBool(v == "true")
		case []string:
			if f.IsNil() {
				f.Set(reflect.ValueOf([]string{v}))
			}
		default:
			panic(f.Type())
		}
	}
	return nil
}
