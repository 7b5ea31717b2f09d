// Package layout loads and saves circuit layouts as YAML documents.
//
// A document lists nodes with their static configuration, the cables joining
// them and the devices driving them. Loading builds a circuit.Graph and a
// devices.Set; saving writes the static configuration back, leaving out
// anything the engine derives (circuits, contact states, relay positions).
package layout

// Document is the YAML form of a layout
type Document struct {
	Name    string      `yaml:"name" validate:"required,max=64"`
	Nodes   []NodeSpec  `yaml:"nodes" validate:"required,min=1,dive"`
	Cables  []CableSpec `yaml:"cables,omitempty" validate:"dive"`
	Devices DeviceSpecs `yaml:"devices,omitempty"`
}

// NodeSpec describes one node. Only the fields of its kind are used.
type NodeSpec struct {
	Name string `yaml:"name" validate:"required,max=64,devname"`
	Kind string `yaml:"kind" validate:"required,oneof=power_source sink deviator switch junction diode"`

	// power_source
	Poles   []string `yaml:"poles,omitempty" validate:"omitempty,max=2,dive,oneof=first second"`
	Enabled bool     `yaml:"enabled,omitempty"`

	// sink and deviator
	Flavor string `yaml:"flavor,omitempty"`

	// sink
	Polarity string `yaml:"polarity,omitempty" validate:"omitempty,oneof=any first second"`

	// deviator
	Flip        bool              `yaml:"flip,omitempty"`
	Swap        bool              `yaml:"swap,omitempty"`
	CenterTap   *bool             `yaml:"center_tap,omitempty"`
	Passthrough []PassthroughSpec `yaml:"passthrough,omitempty" validate:"dive"`

	// switch
	On bool `yaml:"on,omitempty"`

	// junction
	DisabledContact *int `yaml:"disabled_contact,omitempty" validate:"omitempty,min=0,max=3"`
}

// PassthroughSpec marks a deviator contact as passthrough on one pole
type PassthroughSpec struct {
	Contact int    `yaml:"contact" validate:"min=0,max=2"`
	Pole    string `yaml:"pole" validate:"required,oneof=first second"`
}

// CableSpec joins two node contacts
type CableSpec struct {
	Name string  `yaml:"name,omitempty" validate:"max=64"`
	Mode string  `yaml:"mode,omitempty" validate:"omitempty,oneof=unifilar bifilar"`
	A    EndSpec `yaml:"a"`
	B    EndSpec `yaml:"b"`
}

// EndSpec references a node contact by node name
type EndSpec struct {
	Node    string `yaml:"node" validate:"required"`
	Contact int    `yaml:"contact" validate:"min=0,max=3"`
}

// DeviceSpecs groups the devices of a layout
type DeviceSpecs struct {
	Relays       []RelaySpec       `yaml:"relays,omitempty" validate:"dive"`
	ScreenRelays []ScreenRelaySpec `yaml:"screen_relays,omitempty" validate:"dive"`
	Levers       []LeverSpec       `yaml:"levers,omitempty" validate:"dive"`
	Buttons      []ButtonSpec      `yaml:"buttons,omitempty" validate:"dive"`
	Magnets      []MagnetSpec      `yaml:"magnets,omitempty" validate:"dive"`
	Lamps        []LampSpec        `yaml:"lamps,omitempty" validate:"dive"`
}

// RelaySpec describes a relay by the names of its coil and contact nodes
type RelaySpec struct {
	Name      string   `yaml:"name" validate:"required,max=64,devname"`
	Type      string   `yaml:"type,omitempty" validate:"omitempty,oneof=normal polarized polarized_inverted stabilized"`
	Coils     []string `yaml:"coils" validate:"required,min=1"`
	DownCoils []string `yaml:"down_coils,omitempty"`
	Contacts  []string `yaml:"contacts,omitempty"`
	UpSpeed   float64  `yaml:"up_speed,omitempty" validate:"min=0,max=1"`
	DownSpeed float64  `yaml:"down_speed,omitempty" validate:"min=0,max=1"`
}

// ScreenRelaySpec describes a screen relay. Power names the sink whose pole
// moves the screen.
type ScreenRelaySpec struct {
	Name      string   `yaml:"name" validate:"required,max=64,devname"`
	Type      string   `yaml:"type,omitempty" validate:"omitempty,oneof=centered decentered"`
	Power     string   `yaml:"power,omitempty"`
	ContactsA []string `yaml:"contacts_a,omitempty"`
	ContactsB []string `yaml:"contacts_b,omitempty"`
}

// LeverSpec describes a lever and the positions making each of its contacts
type LeverSpec struct {
	Name         string             `yaml:"name" validate:"required,max=64,devname"`
	Min          int                `yaml:"min"`
	Max          int                `yaml:"max" validate:"gtefield=Min"`
	Normal       int                `yaml:"normal,omitempty"`
	SpringReturn bool               `yaml:"spring_return,omitempty"`
	Contacts     []LeverContactSpec `yaml:"contacts,omitempty" validate:"dive"`
}

// LeverContactSpec binds a deviator to lever position conditions
type LeverContactSpec struct {
	Node       string               `yaml:"node" validate:"required"`
	Conditions []LeverConditionSpec `yaml:"conditions,omitempty" validate:"dive"`
}

// LeverConditionSpec is an exact position or a From..To range
type LeverConditionSpec struct {
	Type  string `yaml:"type,omitempty" validate:"omitempty,oneof=exact range"`
	From  int    `yaml:"from"`
	To    int    `yaml:"to,omitempty"`
	Wraps bool   `yaml:"wraps,omitempty"`
}

// ButtonSpec describes a push button
type ButtonSpec struct {
	Name     string   `yaml:"name" validate:"required,max=64,devname"`
	Contacts []string `yaml:"contacts" validate:"required,min=1"`
}

// MagnetSpec describes an electromagnet
type MagnetSpec struct {
	Name     string   `yaml:"name" validate:"required,max=64,devname"`
	Coils    []string `yaml:"coils" validate:"required,min=1"`
	Contacts []string `yaml:"contacts,omitempty"`
}

// LampSpec names the sink a lamp shows
type LampSpec struct {
	Name string `yaml:"name" validate:"required,max=64,devname"`
	Sink string `yaml:"sink" validate:"required"`
}
