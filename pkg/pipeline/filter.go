package pipeline

import (
	"math"
	"math/rand/v2"
	"regexp"
	"slices"
	"strings"

	"github.com/fedsim/fedsim-go/pkg/message"
	"github.com/fedsim/fedsim-go/pkg/option"
	"github.com/fedsim/fedsim-go/pkg/simtime"
	"github.com/fedsim/fedsim-go/pkg/status"
)

// FilterOperator processes one message.
//
// The first returned message continues through the remaining filters and on
// to its destination. Any further messages are extra deliveries routed by
// their own destination. An empty result drops the message.
type FilterOperator interface {
	Process(m *message.Message) []*message.Message
}

// Configurable is implemented by operators with runtime properties.
type Configurable interface {
	Set(property string, value float64) error
	SetString(property string, value string) error
}

// Apply runs m through ops in order. It returns the surviving message, nil
// when a filter dropped it, and the extra deliveries produced on the way.
// No result is stamped earlier than m was on entry.
func Apply(ops []FilterOperator, m *message.Message) (*message.Message, []*message.Message) {
	floor := m.Time
	var extra []*message.Message
	cur := m
	for _, op := range ops {
		if op == nil {
			continue
		}
		out := op.Process(cur)
		for _, o := range out {
			if o != nil && simtime.Less(o.Time, floor) {
				o.Time = floor
			}
		}
		if len(out) == 0 {
			return nil, extra
		}
		cur = out[0]
		extra = append(extra, out[1:]...)
		if cur == nil {
			return nil, extra
		}
	}
	return cur, extra
}

// NewFilter creates a built-in filter of type t. Random filters draw from a
// generator seeded with seed.
func NewFilter(t option.FilterType, seed uint64) (FilterOperator, error) {
	switch t {
	case option.FilterCustom:
		return &CustomFilter{}, nil
	case option.FilterDelay:
		return &DelayFilter{}, nil
	case option.FilterRandomDelay:
		return NewRandomDelayFilter(seed), nil
	case option.FilterRandomDrop:
		return NewRandomDropFilter(seed), nil
	case option.FilterReroute:
		return &RerouteFilter{}, nil
	case option.FilterClone:
		return &CloneFilter{}, nil
	case option.FilterFirewall:
		return &FirewallFilter{}, nil
	}
	return nil, status.Errorf(status.KindInvalidArgument, "unknown filter type %d", int(t))
}

func unknownProperty(filter, property string) error {
	return status.Errorf(status.KindInvalidProperty, "%s filter has no property %q", filter, property)
}

func propertyName(p string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(p)), "_", "")
}

// CustomFilter runs a user callback. A nil callback passes messages through;
// a callback returning nil drops the message.
type CustomFilter struct {
	Fn func(m *message.Message) *message.Message
}

// Process implements FilterOperator.
func (f *CustomFilter) Process(m *message.Message) []*message.Message {
	if f.Fn == nil {
		return []*message.Message{m}
	}
	out := f.Fn(m)
	if out == nil {
		return nil
	}
	return []*message.Message{out}
}

// Set implements Configurable. Custom filters have no properties.
func (f *CustomFilter) Set(property string, _ float64) error {
	return unknownProperty("custom", property)
}

// SetString implements Configurable.
func (f *CustomFilter) SetString(property string, _ string) error {
	return unknownProperty("custom", property)
}

// DelayFilter adds a fixed delay to the message time.
type DelayFilter struct {
	Delay simtime.Time
}

// Process implements FilterOperator.
func (f *DelayFilter) Process(m *message.Message) []*message.Message {
	if f.Delay > 0 {
		m.Time = simtime.Add(m.Time, f.Delay)
	}
	return []*message.Message{m}
}

// Set implements Configurable. The property is "delay".
func (f *DelayFilter) Set(property string, value float64) error {
	if propertyName(property) != "delay" {
		return unknownProperty("delay", property)
	}
	if value < 0 {
		return status.Errorf(status.KindInvalidProperty, "delay must not be negative: %g", value)
	}
	f.Delay = simtime.Time(value)
	return nil
}

// SetString implements Configurable.
func (f *DelayFilter) SetString(property string, _ string) error {
	return unknownProperty("delay", property)
}

// Distribution names accepted by RandomDelayFilter.
const (
	DistributionConstant    = "constant"
	DistributionUniform     = "uniform"
	DistributionNormal      = "normal"
	DistributionExponential = "exponential"
)

// RandomDelayFilter adds a random delay drawn from a distribution.
//
// For uniform delays Param1 and Param2 are the bounds; for normal delays
// they are the mean and standard deviation; exponential and constant delays
// use Param1 as the mean. Negative draws are clamped to zero.
type RandomDelayFilter struct {
	Distribution string
	Param1       float64
	Param2       float64

	rng *rand.Rand
}

// NewRandomDelayFilter creates a uniform random delay filter on [0, 1).
func NewRandomDelayFilter(seed uint64) *RandomDelayFilter {
	return &RandomDelayFilter{
		Distribution: DistributionUniform,
		Param2:       1,
		rng:          rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (f *RandomDelayFilter) draw() float64 {
	var d float64
	switch f.Distribution {
	case DistributionConstant:
		d = f.Param1
	case DistributionNormal:
		d = f.Param1 + f.Param2*f.rng.NormFloat64()
	case DistributionExponential:
		d = f.Param1 * f.rng.ExpFloat64()
	default:
		lo, hi := f.Param1, f.Param2
		if hi < lo {
			lo, hi = hi, lo
		}
		d = lo + (hi-lo)*f.rng.Float64()
	}
	return math.Max(d, 0)
}

// Process implements FilterOperator.
func (f *RandomDelayFilter) Process(m *message.Message) []*message.Message {
	m.Time = simtime.Add(m.Time, simtime.Time(f.draw()))
	return []*message.Message{m}
}

// Set implements Configurable. Properties are "param1" (or "mean", "min")
// and "param2" (or "stddev", "max").
func (f *RandomDelayFilter) Set(property string, value float64) error {
	switch propertyName(property) {
	case "param1", "mean", "min", "a":
		f.Param1 = value
	case "param2", "stddev", "max", "b":
		f.Param2 = value
	default:
		return unknownProperty("random_delay", property)
	}
	return nil
}

// SetString implements Configurable. The property is "distribution".
func (f *RandomDelayFilter) SetString(property string, value string) error {
	if propertyName(property) != "distribution" {
		return unknownProperty("random_delay", property)
	}
	switch d := strings.ToLower(value); d {
	case DistributionConstant, DistributionUniform, DistributionNormal, DistributionExponential:
		f.Distribution = d
		return nil
	}
	return status.Errorf(status.KindInvalidProperty, "unknown distribution %q", value)
}

// RandomDropFilter drops messages with probability Prob.
type RandomDropFilter struct {
	Prob float64

	rng *rand.Rand
}

// NewRandomDropFilter creates a filter that drops nothing until Prob is set.
func NewRandomDropFilter(seed uint64) *RandomDropFilter {
	return &RandomDropFilter{rng: rand.New(rand.NewPCG(seed, seed^0x6a09e667f3bcc909))}
}

// Process implements FilterOperator.
func (f *RandomDropFilter) Process(m *message.Message) []*message.Message {
	if f.Prob > 0 && f.rng.Float64() < f.Prob {
		return nil
	}
	return []*message.Message{m}
}

// Set implements Configurable. The property is "prob" in [0, 1].
func (f *RandomDropFilter) Set(property string, value float64) error {
	switch propertyName(property) {
	case "prob", "probability", "dropprob":
	default:
		return unknownProperty("random_drop", property)
	}
	if value < 0 || value > 1 {
		return status.Errorf(status.KindInvalidProperty, "drop probability out of range: %g", value)
	}
	f.Prob = value
	return nil
}

// SetString implements Configurable.
func (f *RandomDropFilter) SetString(property string, _ string) error {
	return unknownProperty("random_drop", property)
}

// RerouteFilter sends messages to a new destination. When conditions are
// set, only messages whose destination matches one of them are rerouted.
type RerouteFilter struct {
	NewDestination string

	conditions []*regexp.Regexp
}

// Process implements FilterOperator.
func (f *RerouteFilter) Process(m *message.Message) []*message.Message {
	if f.NewDestination == "" || !f.matches(m.Destination) {
		return []*message.Message{m}
	}
	if m.OriginalDestination == "" {
		m.OriginalDestination = m.Destination
	}
	m.Destination = f.NewDestination
	return []*message.Message{m}
}

func (f *RerouteFilter) matches(dest string) bool {
	if len(f.conditions) == 0 {
		return true
	}
	for _, re := range f.conditions {
		if re.MatchString(dest) {
			return true
		}
	}
	return false
}

// Set implements Configurable.
func (f *RerouteFilter) Set(property string, _ float64) error {
	return unknownProperty("reroute", property)
}

// SetString implements Configurable. Properties are "newdestination" and
// "condition", a regular expression matched against the full destination.
func (f *RerouteFilter) SetString(property string, value string) error {
	switch propertyName(property) {
	case "newdestination", "destination":
		f.NewDestination = value
	case "condition":
		re, err := regexp.Compile("^(?:" + value + ")$")
		if err != nil {
			return status.Wrap(status.KindInvalidProperty, err, "bad reroute condition %q", value)
		}
		f.conditions = append(f.conditions, re)
	default:
		return unknownProperty("reroute", property)
	}
	return nil
}

// CloneFilter leaves the original message untouched and emits a copy for
// every delivery endpoint. Copies keep the original source and original
// destination.
type CloneFilter struct {
	deliveries []string
}

// Deliveries returns the delivery endpoints in insertion order.
func (f *CloneFilter) Deliveries() []string {
	return slices.Clone(f.deliveries)
}

// AddDelivery adds a delivery endpoint. Duplicates are ignored.
func (f *CloneFilter) AddDelivery(name string) {
	if name == "" || slices.Contains(f.deliveries, name) {
		return
	}
	f.deliveries = append(f.deliveries, name)
}

// RemoveDelivery removes a delivery endpoint.
func (f *CloneFilter) RemoveDelivery(name string) {
	f.deliveries = slices.DeleteFunc(f.deliveries, func(d string) bool { return d == name })
}

// Process implements FilterOperator.
func (f *CloneFilter) Process(m *message.Message) []*message.Message {
	out := make([]*message.Message, 0, 1+len(f.deliveries))
	out = append(out, m)
	for _, d := range f.deliveries {
		c := m.Clone()
		if c.OriginalDestination == "" {
			c.OriginalDestination = m.Destination
		}
		if c.OriginalSource == "" {
			c.OriginalSource = m.Source
		}
		c.Destination = d
		out = append(out, c)
	}
	return out
}

// Set implements Configurable.
func (f *CloneFilter) Set(property string, _ float64) error {
	return unknownProperty("clone", property)
}

// SetString implements Configurable. Properties are "delivery" (or "add")
// and "remove".
func (f *CloneFilter) SetString(property string, value string) error {
	switch propertyName(property) {
	case "delivery", "add", "destination":
		f.AddDelivery(value)
	case "remove":
		f.RemoveDelivery(value)
	default:
		return unknownProperty("clone", property)
	}
	return nil
}

// FirewallFilter drops messages by source. Blocked patterns always drop;
// when any allow pattern is set, only matching sources pass.
type FirewallFilter struct {
	allow []*regexp.Regexp
	block []*regexp.Regexp
}

// Process implements FilterOperator.
func (f *FirewallFilter) Process(m *message.Message) []*message.Message {
	if anyMatch(f.block, m.Source) {
		return nil
	}
	if len(f.allow) > 0 && !anyMatch(f.allow, m.Source) {
		return nil
	}
	return []*message.Message{m}
}

func anyMatch(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// Set implements Configurable.
func (f *FirewallFilter) Set(property string, _ float64) error {
	return unknownProperty("firewall", property)
}

// SetString implements Configurable. Properties are "allow" and "block",
// each a regular expression matched against the full source name.
func (f *FirewallFilter) SetString(property string, value string) error {
	re, err := regexp.Compile("^(?:" + value + ")$")
	if err != nil {
		return status.Wrap(status.KindInvalidProperty, err, "bad firewall pattern %q", value)
	}
	switch propertyName(property) {
	case "allow":
		f.allow = append(f.allow, re)
	case "block":
		f.block = append(f.block, re)
	default:
		return unknownProperty("firewall", property)
	}
	return nil
}

// Compile-time interface satisfaction checks.
var (
	_ Configurable = (*CustomFilter)(nil)
	_ Configurable = (*DelayFilter)(nil)
	_ Configurable = (*RandomDelayFilter)(nil)
	_ Configurable = (*RandomDropFilter)(nil)
	_ Configurable = (*RerouteFilter)(nil)
	_ Configurable = (*CloneFilter)(nil)
	_ Configurable = (*FirewallFilter)(nil)
)
