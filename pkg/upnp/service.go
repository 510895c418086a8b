package upnp

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"sync"
	"time"
)

// Variable is an evented state variable.
type Variable struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// variableName is the element name a variable becomes in a propertyset.
var variableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.-]*$`)

// ValidateVariables rejects names that cannot be used as XML element names.
func ValidateVariables(vars []Variable) error {
	for _, v := range vars {
		if !variableName.MatchString(v.Name) {
			return fmt.Errorf("%w: %q", ErrInvalidVariable, v.Name)
		}
	}
	return nil
}

// VariablesFromMap orders a name/value map into variables sorted by name.
func VariablesFromMap(m map[string]string) []Variable {
	vars := make([]Variable, 0, len(m))
	for name, value := range m {
		vars = append(vars, Variable{Name: name, Value: value})
	}
	sort.Slice(vars, func(i, j int) bool { return vars[i].Name < vars[j].Name })
	return vars
}

// Subscription is one GENA subscriber of a service.
type Subscription struct {
	SID      string
	Callback string
	Seq      uint32
	Expires  time.Time

	// initialSent is set once the SEQ 0 event was queued; regular
	// notifications skip the subscription until then.
	initialSent bool
}

func (s *Subscription) nextSeq() uint32 {
	seq := s.Seq
	if s.Seq == math.MaxUint32 {
		s.Seq = 1
	} else {
		s.Seq++
	}
	return seq
}

type pending struct {
	callback string
	created  time.Time
}

// Service is the runtime record of a described service.
type Service struct {
	UDN         string
	ServiceID   string
	ServiceType string
	SCPDURL     string
	ControlURL  string
	EventSubURL string

	mu        sync.Mutex
	variables []Variable
	actions   map[string]ActionHandler
	subs      map[string]*Subscription
	pending   map[string]pending
}

func newService(udn string, d ServiceDesc) *Service {
	return &Service{
		UDN:         udn,
		ServiceID:   d.ServiceID,
		ServiceType: d.ServiceType,
		SCPDURL:     urlPath(d.SCPDURL),
		ControlURL:  urlPath(d.ControlURL),
		EventSubURL: urlPath(d.EventSubURL),
		actions:     make(map[string]ActionHandler),
		subs:        make(map[string]*Subscription),
		pending:     make(map[string]pending),
	}
}

// Key identifies the service across devices.
func (s *Service) Key() string { return serviceKey(s.UDN, s.ServiceID) }

func serviceKey(udn, serviceID string) string { return udn + "::" + serviceID }

// setVariables stores vars, replacing existing values by name and appending
// new names in order.
func (s *Service) setVariables(vars []Variable) {
	for _, v := range vars {
		found := false
		for i := range s.variables {
			if s.variables[i].Name == v.Name {
				s.variables[i].Value = v.Value
				found = true
				break
			}
		}
		if !found {
			s.variables = append(s.variables, v)
		}
	}
}

// prune drops expired subscriptions and stale pending ones. Caller holds mu.
func (s *Service) prune(now time.Time, pendingTTL time.Duration) []string {
	var dropped []string
	for sid, sub := range s.subs {
		if !sub.Expires.IsZero() && now.After(sub.Expires) {
			delete(s.subs, sid)
			dropped = append(dropped, sid)
		}
	}
	for sid, p := range s.pending {
		if now.Sub(p.created) > pendingTTL {
			delete(s.pending, sid)
		}
	}
	return dropped
}

// SubscriptionInfo is a read-only view of a subscription.
type SubscriptionInfo struct {
	SID      string    `json:"sid"`
	Callback string    `json:"callback"`
	Seq      uint32    `json:"seq"`
	Expires  time.Time `json:"expires"`
}

// ServiceInfo is a read-only view of a service.
type ServiceInfo struct {
	Key           string             `json:"key"`
	UDN           string             `json:"udn"`
	ServiceID     string             `json:"service_id"`
	ServiceType   string             `json:"service_type"`
	SCPDURL       string             `json:"scpd_url"`
	ControlURL    string             `json:"control_url"`
	EventSubURL   string             `json:"event_sub_url"`
	Variables     []Variable         `json:"variables"`
	Actions       []string           `json:"actions"`
	Subscriptions []SubscriptionInfo `json:"subscriptions"`
}

func (s *Service) info() ServiceInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := ServiceInfo{
		Key:           s.Key(),
		UDN:           s.UDN,
		ServiceID:     s.ServiceID,
		ServiceType:   s.ServiceType,
		SCPDURL:       s.SCPDURL,
		ControlURL:    s.ControlURL,
		EventSubURL:   s.EventSubURL,
		Variables:     append([]Variable{}, s.variables...),
		Actions:       []string{},
		Subscriptions: []SubscriptionInfo{},
	}
	for name := range s.actions {
		out.Actions = append(out.Actions, name)
	}
	sort.Strings(out.Actions)
	for _, sub := range s.subs {
		out.Subscriptions = append(out.Subscriptions, SubscriptionInfo{
			SID:      sub.SID,
			Callback: sub.Callback,
			Seq:      sub.Seq,
			Expires:  sub.Expires,
		})
	}
	sort.Slice(out.Subscriptions, func(i, j int) bool {
		return out.Subscriptions[i].SID < out.Subscriptions[j].SID
	})
	return out
}
