package fixture

import "gopkg.in/yaml.v3"

// Scenario is a YAML-described end-to-end test case (§8 "End-to-end
// scenarios"), letting a table of Hello/WeakFallback/StrongOverWeak/
// IRELATIVE/SearchPrecedence/MissingDependency style cases live as
// data instead of Go literals, the way the teacher's synthetic
// toolchain fixtures separate case data from assertion code.
type Scenario struct {
	Name    string       `yaml:"name"`
	Objects []ObjectSpec `yaml:"objects"`
	// Expect maps a symbolic slot name to the expected 8-byte value
	// written there after relocation, checked by the test driver.
	Expect map[string]uint64 `yaml:"expect"`
}

// ObjectSpec is the YAML form of Object, using plain field names so
// scenario files stay readable.
type ObjectSpec struct {
	Name    string            `yaml:"name"`
	Base    uint64            `yaml:"base"`
	Slide   int64             `yaml:"slide"`
	Needed  []string          `yaml:"needed"`
	Symbols []SymbolSpec      `yaml:"symbols"`
	Relas   []RelaSpec        `yaml:"relas"`
}

type SymbolSpec struct {
	Name  string `yaml:"name"`
	Value uint64 `yaml:"value"`
	Weak  bool   `yaml:"weak"`
}

type RelaSpec struct {
	Offset uint64 `yaml:"offset"`
	Type   uint32 `yaml:"type"`
	Symbol string `yaml:"symbol"`
	Addend int64  `yaml:"addend"`
}

// ParseScenario decodes a YAML document into a Scenario.
func ParseScenario(doc []byte) (Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(doc, &s); err != nil {
		return Scenario{}, err
	}
	return s, nil
}
