package upnp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urmzd/upnpd/pkg/gena"
)

const mediaServerDescription = `<?xml version="1.0"?>
<root xmlns="urn:schemas-upnp-org:device-1-0">
  <specVersion><major>1</major><minor>0</minor></specVersion>
  <device>
    <deviceType>urn:schemas-upnp-org:device:MediaServer:1</deviceType>
    <friendlyName>Test Server</friendlyName>
    <UDN>uuid:abc</UDN>
    <serviceList>
      <service>
        <serviceType>urn:schemas-upnp-org:service:ContentDirectory:1</serviceType>
        <serviceId>urn:upnp-org:serviceId:ContentDirectory</serviceId>
        <SCPDURL>/ContentDirectory/scpd.xml</SCPDURL>
        <controlURL>/ContentDirectory/Control</controlURL>
        <eventSubURL>/ContentDirectory/Event</eventSubURL>
      </service>
    </serviceList>
  </device>
</root>`

const (
	cdsType = "urn:schemas-upnp-org:service:ContentDirectory:1"
	cdsID   = "urn:upnp-org:serviceId:ContentDirectory"
)

type registration struct {
	NT, USN, Location string
	MaxAge            int
}

type fakeAdvertiser struct {
	mu           sync.Mutex
	regs         []registration
	unregistered []string
	advertised   int
	failAt       int

	// watch, when set, is checked for a held lock on every engine call.
	watch    *Manager
	lockedIO int
}

func (f *fakeAdvertiser) checkUnlocked() {
	if f.watch == nil {
		return
	}
	if f.watch.mu.TryLock() {
		f.watch.mu.Unlock()
		return
	}
	f.lockedIO++
}

func (f *fakeAdvertiser) Register(nt, usn, location, server string, maxAge int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkUnlocked()
	if f.failAt > 0 && len(f.regs)+1 == f.failAt {
		return errors.New("socket gone")
	}
	f.regs = append(f.regs, registration{NT: nt, USN: usn, Location: location, MaxAge: maxAge})
	return nil
}

func (f *fakeAdvertiser) Unregister(usn string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkUnlocked()
	f.unregistered = append(f.unregistered, usn)
	kept := f.regs[:0]
	for _, r := range f.regs {
		if r.USN != usn {
			kept = append(kept, r)
		}
	}
	f.regs = kept
	return nil
}

func (f *fakeAdvertiser) Advertise() {
	f.mu.Lock()
	f.advertised++
	f.mu.Unlock()
}

type delivery struct {
	Callback, SID string
	Seq           uint32
	Body          string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []delivery
}

func (f *fakeNotifier) Notify(_ context.Context, callback, sid string, seq uint32, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, delivery{Callback: callback, SID: sid, Seq: seq, Body: string(body)})
	return nil
}

func (f *fakeNotifier) deliveries() []delivery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]delivery(nil), f.sent...)
}

func (f *fakeNotifier) forSID(sid string) []delivery {
	var out []delivery
	for _, d := range f.deliveries() {
		if d.SID == sid {
			out = append(out, d)
		}
	}
	return out
}

func newTestManager(t *testing.T) (*Manager, *fakeAdvertiser, *fakeNotifier) {
	t.Helper()

	adv := &fakeAdvertiser{}
	n := &fakeNotifier{}
	m := NewManager(ManagerConfig{Location: "http://10.0.0.2:49152"}, adv)
	m.SetNotifier(n)
	t.Cleanup(func() { m.Close() })
	return m, adv, n
}

func subscribe(t *testing.T, m *Manager, callback string) string {
	t.Helper()

	reply, err := m.HandleEvent(context.Background(), gena.SubscribeRequest{
		Path:     "/ContentDirectory/Event",
		NT:       "upnp:event",
		Callback: "<" + callback + ">",
	})
	require.NoError(t, err)
	require.NotNil(t, reply)

	_, err = m.HandleEvent(context.Background(), gena.SubscribeAccepted{
		Path: "/ContentDirectory/Event",
		SID:  reply.SID,
	})
	require.NoError(t, err)
	return reply.SID
}

func TestManager_RegisterDeviceIdentities(t *testing.T) {
	m, adv, _ := newTestManager(t)

	require.NoError(t, m.RegisterDevice(mediaServerDescription))

	require.Len(t, adv.regs, 4)
	nts := []string{adv.regs[0].NT, adv.regs[1].NT, adv.regs[2].NT, adv.regs[3].NT}
	assert.Equal(t, []string{
		"upnp:rootdevice",
		"uuid:abc",
		"urn:schemas-upnp-org:device:MediaServer:1",
		cdsType,
	}, nts)
	assert.Equal(t, "uuid:abc::upnp:rootdevice", adv.regs[0].USN)
	assert.Equal(t, "uuid:abc", adv.regs[1].USN)
	assert.Equal(t, "uuid:abc::"+cdsType, adv.regs[3].USN)
	assert.Equal(t, "http://10.0.0.2:49152/description.xml", adv.regs[0].Location)
	assert.Equal(t, 1, adv.advertised)

	services := m.Services()
	require.Len(t, services, 1)
	assert.Equal(t, cdsID, services[0].ServiceID)
	assert.Equal(t, "/ContentDirectory/Event", services[0].EventSubURL)
}

func TestManager_RegisterDeviceServesDescription(t *testing.T) {
	m, _, _ := newTestManager(t)
	require.NoError(t, m.RegisterDevice(mediaServerDescription))

	info, err := m.Info("/description.xml")
	require.NoError(t, err)
	assert.Equal(t, "text/xml", info.MimeType)
	assert.Equal(t, int64(len(mediaServerDescription)), info.Size)

	f, err := m.Open("/description.xml", gena.OpenRead)
	require.NoError(t, err)
	defer f.Close()
	buf := make([]byte, info.Size)
	_, err = f.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, mediaServerDescription, string(buf))

	_, err = m.Open("/description.xml", gena.OpenWrite)
	assert.ErrorIs(t, err, gena.ErrReadOnly)

	_, err = m.Info("/nope")
	assert.ErrorIs(t, err, gena.ErrNotFound)
}

func TestManager_RegisterDeviceErrors(t *testing.T) {
	m, _, _ := newTestManager(t)

	assert.ErrorIs(t, m.RegisterDevice("<root>"), ErrInvalidDescription)
	assert.ErrorIs(t, m.RegisterDevice("<root><device><deviceType>x</deviceType></device></root>"), ErrInvalidDescription)

	require.NoError(t, m.RegisterDevice(mediaServerDescription))
	assert.ErrorIs(t, m.RegisterDevice(mediaServerDescription), ErrAlreadyRegistered)
}

func TestManager_RegisterDeviceWithoutLocation(t *testing.T) {
	m := NewManager(ManagerConfig{}, &fakeAdvertiser{})
	defer m.Close()

	assert.ErrorIs(t, m.RegisterDevice(mediaServerDescription), ErrNoLocation)

	m.SetLocation("http://10.0.0.2:49152/")
	require.NoError(t, m.RegisterDevice(mediaServerDescription))
	assert.Equal(t, "http://10.0.0.2:49152/description.xml", m.DescriptionURL())
}

func TestManager_RegisterDeviceRollsBack(t *testing.T) {
	const twoDevices = `<root><device>
  <deviceType>urn:schemas-upnp-org:device:MediaServer:1</deviceType><UDN>uuid:root</UDN>
  <deviceList><device>
    <deviceType>urn:schemas-upnp-org:device:Embedded:1</deviceType><UDN>uuid:child</UDN>
  </device></deviceList>
</device></root>`

	adv := &fakeAdvertiser{failAt: 4}
	m := NewManager(ManagerConfig{Location: "http://h:1"}, adv)
	defer m.Close()

	err := m.RegisterDevice(twoDevices)
	require.Error(t, err)
	assert.Empty(t, adv.regs)
	assert.ElementsMatch(t, []string{"uuid:root::upnp:rootdevice", "uuid:root", "uuid:root::urn:schemas-upnp-org:device:MediaServer:1"}, adv.unregistered)
	assert.Equal(t, 0, adv.advertised)
	assert.Nil(t, m.Device())
}

func TestManager_EmbeddedDevices(t *testing.T) {
	const twoDevices = `<root><device>
  <deviceType>urn:schemas-upnp-org:device:MediaServer:1</deviceType><UDN>uuid:root</UDN>
  <deviceList><device>
    <deviceType>urn:schemas-upnp-org:device:Embedded:1</deviceType><UDN>uuid:child</UDN>
    <serviceList><service>
      <serviceType>urn:x:service:A:1</serviceType><serviceId>urn:x:serviceId:A</serviceId>
      <controlURL>http://h:1/a/control</controlURL><eventSubURL>a/event</eventSubURL>
    </service></serviceList>
  </device></deviceList>
</device></root>`

	m, adv, _ := newTestManager(t)
	require.NoError(t, m.RegisterDevice(twoDevices))

	assert.Len(t, adv.regs, 6)
	services := m.Services()
	require.Len(t, services, 1)
	assert.Equal(t, "uuid:child", services[0].UDN)
	assert.Equal(t, "/a/event", services[0].EventSubURL)
	assert.Equal(t, "/a/control", services[0].ControlURL)

	require.NoError(t, m.UnregisterDevice("uuid:root"))
	assert.Empty(t, adv.regs)
	assert.Empty(t, m.Services())
	assert.ErrorIs(t, m.UnregisterDevice("uuid:root"), ErrUnknownDevice)
}

func TestManager_SubscribeDistinctSIDs(t *testing.T) {
	m, _, _ := newTestManager(t)
	require.NoError(t, m.RegisterDevice(mediaServerDescription))

	const n = 50
	sids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reply, err := m.HandleEvent(context.Background(), gena.SubscribeRequest{
				Path:     "/ContentDirectory/Event",
				NT:       "upnp:event",
				Callback: "<http://10.0.0.9:8000/cb>",
			})
			if assert.NoError(t, err) {
				sids <- reply.SID
			}
		}()
	}
	wg.Wait()
	close(sids)

	seen := make(map[string]bool)
	for sid := range sids {
		assert.Regexp(t, `^uuid:[0-9a-f-]{36}$`, sid)
		assert.False(t, seen[sid], "duplicate sid %s", sid)
		seen[sid] = true
	}
	assert.Len(t, seen, n)
}

func TestManager_SubscribeValidation(t *testing.T) {
	m, _, _ := newTestManager(t)
	require.NoError(t, m.RegisterDevice(mediaServerDescription))

	ctx := context.Background()

	_, err := m.HandleEvent(ctx, gena.SubscribeRequest{Path: "/unknown", NT: "upnp:event", Callback: "<http://h/>"})
	assert.ErrorIs(t, err, gena.ErrPreconditionFailed)

	_, err = m.HandleEvent(ctx, gena.SubscribeRequest{Path: "/ContentDirectory/Event", NT: "upnp:event", Callback: "no brackets"})
	assert.ErrorIs(t, err, gena.ErrPreconditionFailed)

	_, err = m.HandleEvent(ctx, gena.SubscribeRequest{Path: "/ContentDirectory/Event", SID: "uuid:unknown"})
	assert.ErrorIs(t, err, gena.ErrPreconditionFailed)

	_, err = m.HandleEvent(ctx, gena.SubscribeAccepted{Path: "/ContentDirectory/Event", SID: "uuid:never-requested"})
	assert.ErrorIs(t, err, gena.ErrPreconditionFailed)

	_, err = m.HandleEvent(ctx, gena.Unsubscribe{Path: "/ContentDirectory/Event", SID: "uuid:unknown"})
	assert.ErrorIs(t, err, gena.ErrPreconditionFailed)
}

func TestManager_PendingSubscriptionNotActive(t *testing.T) {
	m, _, n := newTestManager(t)
	require.NoError(t, m.RegisterDevice(mediaServerDescription))

	_, err := m.HandleEvent(context.Background(), gena.SubscribeRequest{
		Path:     "/ContentDirectory/Event",
		NT:       "upnp:event",
		Callback: "<http://10.0.0.9:8000/cb>",
	})
	require.NoError(t, err)

	require.NoError(t, m.NotifySubscribers(context.Background(), cdsID, []Variable{{Name: "SystemUpdateID", Value: "1"}}))
	time.Sleep(50 * time.Millisecond)

	assert.Empty(t, n.deliveries())
	assert.Empty(t, m.Services()[0].Subscriptions)
}

func TestManager_InitialEventAndSequence(t *testing.T) {
	m, _, n := newTestManager(t)
	require.NoError(t, m.RegisterDevice(mediaServerDescription))
	require.NoError(t, m.SetVariables("uuid:abc", cdsID, []Variable{{Name: "SystemUpdateID", Value: "0"}}))

	sid := subscribe(t, m, "http://10.0.0.9:8000/cb")

	require.Eventually(t, func() bool { return len(n.forSID(sid)) == 1 }, 2*time.Second, 10*time.Millisecond)
	initial := n.forSID(sid)[0]
	assert.Equal(t, uint32(0), initial.Seq)
	assert.Equal(t, "http://10.0.0.9:8000/cb", initial.Callback)
	assert.Contains(t, initial.Body, "<SystemUpdateID>0</SystemUpdateID>")

	require.NoError(t, m.NotifySubscribers(context.Background(), cdsID, []Variable{{Name: "SystemUpdateID", Value: "7"}}))
	require.NoError(t, m.NotifySubscribers(context.Background(), "uuid:abc::"+cdsID, []Variable{{Name: "ContainerUpdateIDs", Value: "a<b"}}))

	require.Eventually(t, func() bool { return len(n.forSID(sid)) == 3 }, 2*time.Second, 10*time.Millisecond)
	got := n.forSID(sid)
	assert.Equal(t, uint32(1), got[1].Seq)
	assert.Contains(t, got[1].Body, `<e:propertyset xmlns:e="urn:schemas-upnp-org:event-1-0">`)
	assert.Contains(t, got[1].Body, "<e:property><SystemUpdateID>7</SystemUpdateID></e:property>")
	assert.Equal(t, uint32(2), got[2].Seq)
	assert.Contains(t, got[2].Body, "<ContainerUpdateIDs>a&lt;b</ContainerUpdateIDs>")

	vars := m.Services()[0].Variables
	assert.Equal(t, []Variable{{Name: "SystemUpdateID", Value: "7"}, {Name: "ContainerUpdateIDs", Value: "a<b"}}, vars)
}

func TestManager_UnsubscribeStopsDelivery(t *testing.T) {
	m, _, n := newTestManager(t)
	require.NoError(t, m.RegisterDevice(mediaServerDescription))

	a := subscribe(t, m, "http://10.0.0.9:8000/a")
	b := subscribe(t, m, "http://10.0.0.9:8000/b")
	require.Eventually(t, func() bool { return len(n.forSID(a)) == 1 && len(n.forSID(b)) == 1 }, 2*time.Second, 10*time.Millisecond)

	_, err := m.HandleEvent(context.Background(), gena.Unsubscribe{Path: "/ContentDirectory/Event", Host: "h", SID: a})
	require.NoError(t, err)

	require.NoError(t, m.NotifySubscribers(context.Background(), cdsID, []Variable{{Name: "SystemUpdateID", Value: "2"}}))
	require.Eventually(t, func() bool { return len(n.forSID(b)) == 2 }, 2*time.Second, 10*time.Millisecond)

	assert.Len(t, n.forSID(a), 1)
	assert.Equal(t, uint32(1), n.forSID(b)[1].Seq)
}

func TestManager_RenewalAndExpiry(t *testing.T) {
	m, _, _ := newTestManager(t)
	require.NoError(t, m.RegisterDevice(mediaServerDescription))

	now := time.Now()
	var clock sync.Mutex
	m.now = func() time.Time {
		clock.Lock()
		defer clock.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		clock.Lock()
		now = now.Add(d)
		clock.Unlock()
	}

	sid := subscribe(t, m, "http://10.0.0.9:8000/cb")

	advance(1000 * time.Second)
	reply, err := m.HandleEvent(context.Background(), gena.SubscribeRequest{Path: "/ContentDirectory/Event", SID: sid})
	require.NoError(t, err)
	assert.Equal(t, sid, reply.SID)

	advance(1000 * time.Second)
	m.sweep()
	require.Len(t, m.Services()[0].Subscriptions, 1)

	advance(1000 * time.Second)
	m.sweep()
	assert.Empty(t, m.Services()[0].Subscriptions)

	_, err = m.HandleEvent(context.Background(), gena.SubscribeRequest{Path: "/ContentDirectory/Event", SID: sid})
	assert.ErrorIs(t, err, gena.ErrPreconditionFailed)
}

func TestManager_NotifyUnknownService(t *testing.T) {
	m, _, _ := newTestManager(t)
	require.NoError(t, m.RegisterDevice(mediaServerDescription))

	err := m.NotifySubscribers(context.Background(), "urn:upnp-org:serviceId:Nope", []Variable{{Name: "x", Value: "1"}})
	assert.ErrorIs(t, err, ErrUnknownService)
}

func TestManager_EventFanout(t *testing.T) {
	m, _, _ := newTestManager(t)
	require.NoError(t, m.RegisterDevice(mediaServerDescription))

	ch := m.Subscribe()
	sid := subscribe(t, m, "http://10.0.0.9:8000/cb")

	select {
	case ev := <-ch:
		acc, ok := ev.(gena.SubscribeAccepted)
		require.True(t, ok)
		assert.Equal(t, sid, acc.SID)
		assert.Equal(t, "http://10.0.0.9:8000/cb", acc.Callback)
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}

	m.Unsubscribe(ch)
	_, open := <-ch
	assert.False(t, open)
}

func soapBody(action string, args string) []byte {
	return []byte(fmt.Sprintf(`<?xml version="1.0"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">
<s:Body><u:%s xmlns:u="%s">%s</u:%s></s:Body></s:Envelope>`, action, cdsType, args, action))
}

func TestManager_Action(t *testing.T) {
	m, _, _ := newTestManager(t)
	require.NoError(t, m.RegisterDevice(mediaServerDescription))

	var got *ActionCall
	require.NoError(t, m.SetActionHandler("uuid:abc", cdsID, "Browse", func(_ context.Context, call *ActionCall) ([]Argument, error) {
		got = call
		return []Argument{{Name: "Result", Value: "<DIDL-Lite/>"}, {Name: "NumberReturned", Value: "0"}}, nil
	}))

	reply, err := m.HandleEvent(context.Background(), gena.ActionRequest{
		Path:        "/ContentDirectory/Control",
		ServiceType: cdsType,
		ActionName:  "Browse",
		Body:        soapBody("Browse", "<ObjectID>0</ObjectID><BrowseFlag>BrowseDirectChildren</BrowseFlag>"),
	})
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, "uuid:abc", got.UDN)
	id, ok := got.Arg("ObjectID")
	assert.True(t, ok)
	assert.Equal(t, "0", id)
	flag, _ := got.Arg("BrowseFlag")
	assert.Equal(t, "BrowseDirectChildren", flag)

	body := string(reply.Body)
	assert.Contains(t, body, `<u:BrowseResponse xmlns:u="`+cdsType+`">`)
	assert.Contains(t, body, "<Result>&lt;DIDL-Lite/&gt;</Result>")
	assert.Contains(t, body, "<NumberReturned>0</NumberReturned>")
}

func TestManager_ActionMismatches(t *testing.T) {
	m, _, _ := newTestManager(t)
	require.NoError(t, m.RegisterDevice(mediaServerDescription))
	require.NoError(t, m.SetActionHandler("uuid:abc", cdsID, "Fail", func(context.Context, *ActionCall) ([]Argument, error) {
		return nil, errors.New("disk on fire")
	}))

	tests := []struct {
		name string
		req  gena.ActionRequest
		code int
	}{
		{"unknown control path", gena.ActionRequest{Path: "/nope", ServiceType: cdsType, ActionName: "Browse"}, CodeInvalidAction},
		{"service type mismatch", gena.ActionRequest{Path: "/ContentDirectory/Control", ServiceType: "urn:x:service:Other:1", ActionName: "Browse"}, CodeInvalidAction},
		{"unknown action", gena.ActionRequest{Path: "/ContentDirectory/Control", ServiceType: cdsType, ActionName: "Browse"}, CodeInvalidAction},
		{"handler failure", gena.ActionRequest{Path: "/ContentDirectory/Control", ServiceType: cdsType, ActionName: "Fail", Body: soapBody("Fail", "")}, CodeActionFailed},
		{"malformed body", gena.ActionRequest{Path: "/ContentDirectory/Control", ServiceType: cdsType, ActionName: "Fail", Body: []byte("<s:Envelope><s:Body><u:Fail><a>")}, CodeInvalidArgs},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.HandleEvent(context.Background(), tt.req)
			var aerr *ActionError
			require.ErrorAs(t, err, &aerr)
			assert.Equal(t, tt.code, aerr.Code)

			var fault gena.Fault
			require.ErrorAs(t, err, &fault)
			assert.Contains(t, string(fault.FaultBody()), fmt.Sprintf("<errorCode>%d</errorCode>", tt.code))
		})
	}

	assert.ErrorIs(t, m.SetActionHandler("uuid:abc", "urn:nope", "X", nil), ErrUnknownService)
}

func TestManager_CloseWithdrawsDevice(t *testing.T) {
	adv := &fakeAdvertiser{}
	m := NewManager(ManagerConfig{Location: "http://h:1"}, adv)
	require.NoError(t, m.RegisterDevice(mediaServerDescription))

	require.NoError(t, m.Close())
	assert.Empty(t, adv.regs)
	assert.Len(t, adv.unregistered, 4)
	assert.ErrorIs(t, m.Close(), ErrClosed)
	assert.ErrorIs(t, m.RegisterDevice(mediaServerDescription), ErrClosed)
}

func TestManager_EngineCallsWithoutLock(t *testing.T) {
	adv := &fakeAdvertiser{failAt: 3}
	m := NewManager(ManagerConfig{Location: "http://h:1"}, adv)
	adv.watch = m

	require.Error(t, m.RegisterDevice(mediaServerDescription))
	adv.failAt = 0
	require.NoError(t, m.RegisterDevice(mediaServerDescription))
	require.NoError(t, m.UnregisterDevice("uuid:abc"))
	require.NoError(t, m.RegisterDevice(mediaServerDescription))
	require.NoError(t, m.Close())

	assert.Equal(t, 0, adv.lockedIO)
	assert.Empty(t, adv.regs)
}

func TestManager_RejectsSharedServicePaths(t *testing.T) {
	const description = `<root><device>
  <deviceType>urn:x:device:Root:1</deviceType><UDN>uuid:root</UDN>
  <serviceList><service>
    <serviceType>urn:x:service:S:1</serviceType><serviceId>urn:x:serviceId:S</serviceId>
    <controlURL>%s</controlURL><eventSubURL>%s</eventSubURL>
  </service></serviceList>
  <deviceList><device>
    <deviceType>urn:x:device:Child:1</deviceType><UDN>uuid:child</UDN>
    <serviceList><service>
      <serviceType>urn:x:service:S:1</serviceType><serviceId>urn:x:serviceId:S</serviceId>
      <controlURL>/child/c</controlURL><eventSubURL>/child/e</eventSubURL>
    </service></serviceList>
  </device></deviceList>
</device></root>`

	tests := []struct {
		name, control, event string
	}{
		{"same eventSubURL", "/root/c", "/child/e"},
		{"same eventSubURL after normalising", "/root/c", "http://h:1/child/e"},
		{"same controlURL", "child/c", "/root/e"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, adv, _ := newTestManager(t)
			err := m.RegisterDevice(fmt.Sprintf(description, tt.control, tt.event))
			assert.ErrorIs(t, err, ErrInvalidDescription)
			assert.Empty(t, adv.regs)
			assert.Empty(t, m.Services())
		})
	}

	m, _, _ := newTestManager(t)
	require.NoError(t, m.RegisterDevice(fmt.Sprintf(description, "/root/c", "/root/e")))
	assert.Len(t, m.Services(), 2)
}

func TestManager_RejectsInvalidVariableNames(t *testing.T) {
	m, _, n := newTestManager(t)
	require.NoError(t, m.RegisterDevice(mediaServerDescription))
	subscribe(t, m, "http://10.0.0.9:8000/cb")

	bad := []Variable{{Name: "a b></e:property><x", Value: "1"}}
	assert.ErrorIs(t, m.NotifySubscribers(context.Background(), cdsID, bad), ErrInvalidVariable)
	assert.ErrorIs(t, m.SetVariables("uuid:abc", cdsID, bad), ErrInvalidVariable)

	for _, svc := range m.Services() {
		for _, v := range svc.Variables {
			assert.NotEqual(t, bad[0].Name, v.Name)
		}
	}
	for _, d := range n.deliveries() {
		assert.NotContains(t, d.Body, "<x")
	}
}
