package broker

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedsim/fedsim-go/pkg/option"
	"github.com/fedsim/fedsim-go/pkg/query"
	"github.com/fedsim/fedsim-go/pkg/wire"
)

func queryHarness(t *testing.T) (*harness, wire.FederateID, wire.FederateID) {
	h, a, b := twoFederates(t, fedOpts{}, fedOpts{})
	h.register(a, wire.KindPublication, "A/out", "double")
	h.register(b, wire.KindInput, "B/in", "double")
	h.register(b, wire.KindEndpoint, "B/ep", "")
	h.link(wire.LinkData, "A/out", "B/in")
	h.drain()
	return h, a, b
}

func TestAnswerRootQueries(t *testing.T) {
	h, _, _ := queryHarness(t)

	tests := []struct {
		query string
		want  any
	}{
		{"name", "root"},
		{"federates", []any{"A", "B"}},
		{"cores", []any{"core_a", "core_b"}},
		{"brokers", []any{}},
		{"publications", []any{"A/out"}},
		{"inputs", []any{"B/in"}},
		{"endpoints", []any{"B/ep"}},
		{"filters", []any{}},
		{"barriers", []any{}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			answer, ok := h.b.answerLocal("root", tt.query)
			require.True(t, ok)
			var got any
			require.NoError(t, json.Unmarshal([]byte(answer), &got), answer)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCountsQuery(t *testing.T) {
	h, _, _ := queryHarness(t)

	answer, ok := h.b.answerLocal("", "counts")
	require.True(t, ok)
	var counts countsDoc
	require.NoError(t, json.Unmarshal([]byte(answer), &counts))
	assert.Equal(t, countsDoc{Cores: 2, Federates: 2, Publications: 1, Inputs: 1, Endpoints: 1}, counts)
}

func TestUnknownQueryIsBadRequest(t *testing.T) {
	h, _, _ := queryHarness(t)

	answer, ok := h.b.answerLocal("root", "no_such_query")
	require.True(t, ok)
	code, _, isErr := query.ParseError(answer)
	assert.True(t, isErr)
	assert.Equal(t, query.CodeBadRequest, code)
}

func TestUnknownTarget(t *testing.T) {
	h, _, _ := queryHarness(t)

	answer, ok := h.b.answerLocal("nobody", "name")
	require.True(t, ok)
	code, _, isErr := query.ParseError(answer)
	assert.True(t, isErr)
	assert.Equal(t, query.CodeNotFound, code)

	answer, ok = h.b.answerLocal("nobody", "exists")
	require.True(t, ok)
	assert.Equal(t, "false", answer)

	answer, ok = h.b.answerLocal("A", "exists")
	require.True(t, ok)
	assert.Equal(t, "true", answer)
}

func TestFederateQueryIsForwarded(t *testing.T) {
	h, a, _ := queryHarness(t)

	q := wire.New(wire.ActQuery)
	q.SourceNode = wire.RootNode
	q.Target = "A"
	q.Payload = []byte("current_time")
	q.Counter = 7
	h.b.handleRoot(q, nil)

	msgs := h.take(a)
	require.Len(t, msgs, 1)
	assert.Equal(t, wire.ActQuery, msgs[0].Action)
	assert.Equal(t, wire.Handle(a, 0), msgs[0].Dest)
	assert.Equal(t, int32(7), msgs[0].Counter)
}

func TestQueryReplyReturnsToRequester(t *testing.T) {
	h, a, b := queryHarness(t)

	q := h.fedMsg(b, wire.ActQuery)
	q.Target = "root"
	q.Payload = []byte("federates")
	q.Counter = 3
	h.b.handleRoot(q, nil)

	assert.Empty(t, h.take(a))
	reply := h.expect(b, wire.ActQueryReply)
	assert.Equal(t, int32(3), reply.Counter)
	assert.JSONEq(t, `["A","B"]`, string(reply.Payload))
}

func TestGlobalValues(t *testing.T) {
	h, _, _ := queryHarness(t)

	set := wire.New(wire.ActSetGlobal)
	set.Name = "scenario"
	set.Payload = []byte("winter")
	h.b.handleRoot(set, nil)

	answer, ok := h.b.answerLocal("root", "global_value/scenario")
	require.True(t, ok)
	assert.Equal(t, `"winter"`, answer)

	answer, ok = h.b.answerLocal("global_value", "scenario")
	require.True(t, ok)
	assert.Equal(t, `"winter"`, answer)

	answer, _ = h.b.answerLocal("global_value", "missing")
	assert.True(t, query.IsError(answer))
}

func TestDependencyGraph(t *testing.T) {
	h, _, _ := queryHarness(t)
	h.link(wire.LinkDependency, "B", "A")

	answer, ok := h.b.answerLocal("root", "dependency_graph")
	require.True(t, ok)
	var graph []dependencyEntry
	require.NoError(t, json.Unmarshal([]byte(answer), &graph))
	require.Len(t, graph, 2)
	assert.Equal(t, []string{"B"}, graph[0].Dependencies)
	assert.Equal(t, []string{"B"}, graph[0].Dependents)
	assert.Equal(t, []string{"A"}, graph[1].Dependencies)
	assert.Equal(t, []string{"A"}, graph[1].Dependents)
}

func TestDataFlowGraphListsPending(t *testing.T) {
	h, _, _ := queryHarness(t)
	h.link(wire.LinkData, "A/out", "C/in")

	answer, ok := h.b.answerLocal("root", "data_flow_graph")
	require.True(t, ok)
	var doc flowDoc
	require.NoError(t, json.Unmarshal([]byte(answer), &doc))
	assert.Equal(t, []flowLink{{Kind: "value", Source: "A/out", Target: "B/in"}}, doc.Links)
	assert.Equal(t, []flowLink{{Kind: "data", Source: "A/out", Target: "C/in"}}, doc.Pending)
}

func TestGlobalTimeQuery(t *testing.T) {
	h, a, b := queryHarness(t)
	h.execute(a, b)
	h.request(b, 4, option.NoIteration)

	answer, ok := h.b.answerLocal("root", "global_time")
	require.True(t, ok)
	var doc globalTimeDoc
	require.NoError(t, json.Unmarshal([]byte(answer), &doc))
	assert.Equal(t, 0.0, doc.Time)
	require.Len(t, doc.Federates, 2)
	assert.True(t, doc.Federates[1].Waiting)
	assert.Equal(t, 4.0, doc.Federates[1].Requested)
}

func TestEchoCommand(t *testing.T) {
	h, a, _ := queryHarness(t)

	cmd := h.fedMsg(a, wire.ActCommand)
	cmd.Name = "A"
	cmd.Target = "root"
	cmd.Payload = []byte(CommandEcho)
	h.b.handleRoot(cmd, nil)

	reply := h.expect(a, wire.ActCommand)
	assert.Equal(t, CommandEchoReply, string(reply.Payload))
	assert.Equal(t, "root", reply.Name)
	assert.Equal(t, wire.Handle(a, 0), reply.Dest)
}

func TestCommandToEveryFederate(t *testing.T) {
	h, a, b := queryHarness(t)

	cmd := wire.New(wire.ActCommand)
	cmd.Name = "root"
	cmd.Target = "*"
	cmd.Payload = []byte("stop")
	h.b.handleRoot(cmd, nil)

	assert.Equal(t, "A", h.expect(a, wire.ActCommand).Target)
	assert.Equal(t, "B", h.expect(b, wire.ActCommand).Target)
}
