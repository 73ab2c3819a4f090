package manifest

import (
	"encoding/json"
	"fmt"
)

// Listener is a callback function that receives events during a fetch run.
type Listener func(fmt.Stringer)

func jsonString(v interface{}) string {
	b, _ := json.Marshal(map[string]interface{}{
		fmt.Sprintf("%T", v): v,
	})
	return string(b)
}

// EventRunSkipped is emitted when the output directory already exists and nothing is fetched.
type EventRunSkipped struct {
	Output string `json:"output,omitempty"`
}

func (e EventRunSkipped) String() string { return jsonString(e) }

// EventIndexFetched is emitted when a Packages index has been downloaded and parsed.
type EventIndexFetched struct {
	URL          string `json:"url,omitempty"`
	Architecture string `json:"architecture,omitempty"`
	Packages     int    `json:"packages"`
}

func (e EventIndexFetched) String() string { return jsonString(e) }

// EventClosureResolved is emitted when the dependency closure of an architecture is known.
type EventClosureResolved struct {
	Architecture string   `json:"architecture,omitempty"`
	Root         string   `json:"root,omitempty"`
	Packages     []string `json:"packages,omitempty"`
}

func (e EventClosureResolved) String() string { return jsonString(e) }

// EventPackageVerified is emitted when a package artifact passed its integrity checks and was unpacked.
type EventPackageVerified struct {
	Package      string `json:"package,omitempty"`
	Version      string `json:"version,omitempty"`
	Architecture string `json:"architecture,omitempty"`
	Files        int    `json:"files"`
}

func (e EventPackageVerified) String() string { return jsonString(e) }

// EventPackageEmpty is emitted when a verified package contributed no file to the output.
type EventPackageEmpty struct {
	Package      string `json:"package,omitempty"`
	Architecture string `json:"architecture,omitempty"`
}

func (e EventPackageEmpty) String() string { return jsonString(e) }

// EventFileExtracted is emitted for every file written to the output.
type EventFileExtracted struct {
	Path    string `json:"path,omitempty"`
	Package string `json:"package,omitempty"`
}

func (e EventFileExtracted) String() string { return jsonString(e) }

// EventArchitectureDone is emitted when every package of an architecture has been processed.
type EventArchitectureDone struct {
	Architecture string `json:"architecture,omitempty"`
	Output       string `json:"output,omitempty"`
	Packages     int    `json:"packages"`
	Files        int    `json:"files"`
}

func (e EventArchitectureDone) String() string { return jsonString(e) }
