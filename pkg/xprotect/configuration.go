package xprotect

import (
	"github.com/beevik/etree"
)

// Configuration is the parsed result of one GetConfiguration call.
type Configuration struct {
	Cameras []*Camera
	Raw     string
}

// Camera is one CameraInfo entry of the server configuration.
type Camera struct {
	GUID        string `json:"guid"`
	Name        string `json:"name"`
	HardwareID  string `json:"hardware_id,omitempty"`
	ShortName   string `json:"short_name,omitempty"`
	Description string `json:"description,omitempty"`
}

// CameraInfo child order in the /2/ schema. Other schema generations may
// reorder children, so elements are matched by name first and these offsets
// are only the fallback.
const (
	idxCoverageDepth = iota
	idxCoverageDirection
	idxCoverageFieldOfView
	idxDescription
	idxDeviceID
	idxDeviceIndex
	idxGisPoint
	idxHardwareID
	idxIcon
	idxName
	idxRecorderID
	idxShortName
)

func parseConfiguration(raw string) (*Configuration, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(raw); err != nil {
		return nil, err
	}

	conf := &Configuration{Raw: raw}

	for _, el := range doc.FindElements("//CameraInfo") {
		children := el.ChildElements()

		conf.Cameras = append(conf.Cameras, &Camera{
			GUID:        childText(el, children, "DeviceId", idxDeviceID),
			Name:        childText(el, children, "Name", idxName),
			HardwareID:  childText(el, children, "HardwareId", idxHardwareID),
			ShortName:   childText(el, children, "ShortName", idxShortName),
			Description: childText(el, children, "Description", idxDescription),
		})
	}

	return conf, nil
}

// childText returns the text of the child matched by tag, or by the schema
// offset when no child carries that tag. Missing both ways means empty.
func childText(el *etree.Element, children []*etree.Element, tag string, idx int) string {
	if child := el.SelectElement(tag); child != nil {
		return child.Text()
	}
	if idx < len(children) {
		return children[idx].Text()
	}
	return ""
}
