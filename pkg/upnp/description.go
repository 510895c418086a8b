package upnp

import (
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
)

// RootDevice is the top of a parsed device description document.
type RootDevice struct {
	XMLName xml.Name `xml:"root"`
	URLBase string   `xml:"URLBase"`
	Device  Device   `xml:"device"`
}

// Device is one <device> element with its embedded devices.
type Device struct {
	DeviceType   string        `xml:"deviceType" json:"device_type"`
	FriendlyName string        `xml:"friendlyName" json:"friendly_name"`
	Manufacturer string        `xml:"manufacturer" json:"manufacturer,omitempty"`
	ModelName    string        `xml:"modelName" json:"model_name,omitempty"`
	UDN          string        `xml:"UDN" json:"udn"`
	Services     []ServiceDesc `xml:"serviceList>service" json:"services"`
	Devices      []Device      `xml:"deviceList>device" json:"devices,omitempty"`
}

// ServiceDesc is one <service> element.
type ServiceDesc struct {
	ServiceType string `xml:"serviceType" json:"service_type"`
	ServiceID   string `xml:"serviceId" json:"service_id"`
	SCPDURL     string `xml:"SCPDURL" json:"scpd_url"`
	ControlURL  string `xml:"controlURL" json:"control_url"`
	EventSubURL string `xml:"eventSubURL" json:"event_sub_url"`
}

// ParseDescription decodes and validates a device description document.
// Every device needs a UDN and a deviceType; every service needs a
// serviceType, a serviceId and an eventSubURL. No two services may share an
// eventSubURL or controlURL path.
func ParseDescription(description string) (*RootDevice, error) {
	var root RootDevice
	if err := xml.Unmarshal([]byte(description), &root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDescription, err)
	}

	eventPaths := make(map[string]string)
	controlPaths := make(map[string]string)
	claim := func(paths map[string]string, kind, path, owner string) error {
		if path == "" {
			return nil
		}
		if prev, ok := paths[path]; ok {
			return fmt.Errorf("%w: %s %s used by %s and %s", ErrInvalidDescription, kind, path, prev, owner)
		}
		paths[path] = owner
		return nil
	}

	var validate func(d *Device) error
	validate = func(d *Device) error {
		d.UDN = strings.TrimSpace(d.UDN)
		d.DeviceType = strings.TrimSpace(d.DeviceType)
		if d.UDN == "" || d.DeviceType == "" {
			return fmt.Errorf("%w: device %q needs UDN and deviceType", ErrInvalidDescription, d.FriendlyName)
		}
		for i := range d.Services {
			s := &d.Services[i]
			s.ServiceType = strings.TrimSpace(s.ServiceType)
			s.ServiceID = strings.TrimSpace(s.ServiceID)
			if s.ServiceType == "" || s.ServiceID == "" || strings.TrimSpace(s.EventSubURL) == "" {
				return fmt.Errorf("%w: service in %s needs serviceType, serviceId and eventSubURL", ErrInvalidDescription, d.UDN)
			}
			owner := serviceKey(d.UDN, s.ServiceID)
			if err := claim(eventPaths, "eventSubURL", urlPath(s.EventSubURL), owner); err != nil {
				return err
			}
			if err := claim(controlPaths, "controlURL", urlPath(s.ControlURL), owner); err != nil {
				return err
			}
		}
		for i := range d.Devices {
			if err := validate(&d.Devices[i]); err != nil {
				return err
			}
		}
		return nil
	}
	if err := validate(&root.Device); err != nil {
		return nil, err
	}

	return &root, nil
}

// Walk visits d and every embedded device depth-first.
func (d *Device) Walk(fn func(*Device)) {
	fn(d)
	for i := range d.Devices {
		d.Devices[i].Walk(fn)
	}
}

// identity is one (NT, USN) pair advertised over SSDP.
type identity struct {
	NT  string
	USN string
}

// identities lists the SSDP identities of the device tree: upnp:rootdevice
// for the root, the UDN and device type for every device, and the service
// type of every service.
func (r *RootDevice) identities() []identity {
	ids := []identity{{NT: "upnp:rootdevice", USN: r.Device.UDN + "::upnp:rootdevice"}}
	r.Device.Walk(func(d *Device) {
		ids = append(ids,
			identity{NT: d.UDN, USN: d.UDN},
			identity{NT: d.DeviceType, USN: d.UDN + "::" + d.DeviceType},
		)
		for _, s := range d.Services {
			ids = append(ids, identity{NT: s.ServiceType, USN: d.UDN + "::" + s.ServiceType})
		}
	})
	return ids
}

// urlPath reduces a description URL (absolute or relative) to the request
// path the eventing server sees.
func urlPath(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if u, err := url.Parse(raw); err == nil {
		raw = u.Path
	}
	if !strings.HasPrefix(raw, "/") {
		raw = "/" + raw
	}
	return raw
}
