package mockfs

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// testerPage is the browser tester served at the root path. It lists the
// live routes and fires requests against them, refreshing itself on reload
// events.
const testerPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>mockfs</title>
<style>
body { font-family: ui-monospace, monospace; margin: 2rem; color: #222; }
h1 { font-size: 1.2rem; }
table { border-collapse: collapse; width: 100%; }
td, th { border-bottom: 1px solid #ddd; padding: .4rem .6rem; text-align: left; }
.method { font-weight: bold; }
.protected { color: #b00; }
#out { white-space: pre-wrap; background: #f6f6f6; padding: 1rem; margin-top: 1rem; }
input { width: 24rem; }
</style>
</head>
<body>
<h1>mockfs &mdash; routes</h1>
<p>
<input id="token" placeholder="bearer token (optional)">
</p>
<table>
<thead><tr><th>Method</th><th>Path</th><th>Kind</th><th>Delay</th><th></th></tr></thead>
<tbody id="routes"></tbody>
</table>
<div id="out"></div>
<script>
async function load() {
	const res = await fetch('/mock-server/routes');
	const routes = await res.json();
	const tbody = document.getElementById('routes');
	tbody.innerHTML = '';
	for (const r of routes) {
		const tr = document.createElement('tr');
		const name = r.protected ? r.path + ' \u{1F512}' : r.path;
		tr.innerHTML = '<td class="method">' + r.method + '</td>' +
			'<td class="' + (r.protected ? 'protected' : '') + '">' +
			name + '</td><td>' + r.kind + '</td><td>' +
			r.delay_ms + 'ms</td>';
		const td = document.createElement('td');
		if (r.method === 'GET' && !r.path.includes('{') &&
			!r.path.includes('*')) {
			const b = document.createElement('button');
			b.textContent = 'try';
			b.onclick = () => tryRoute(r.path);
			td.appendChild(b);
		}
		tr.appendChild(td);
		tbody.appendChild(tr);
	}
}
async function tryRoute(path) {
	const headers = {};
	const token = document.getElementById('token').value;
	if (token) headers['Authorization'] = 'Bearer ' + token;
	const res = await fetch(path, { headers });
	const text = await res.text();
	document.getElementById('out').textContent =
		res.status + ' ' + res.statusText + '\n\n' + text;
}
function watch() {
	const proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
	const ws = new WebSocket(proto + '//' + location.host +
		'/mock-server/events');
	ws.onmessage = () => load();
	ws.onclose = () => setTimeout(watch, 2000);
}
load();
watch();
</script>
</body>
</html>
`

// graphiqlPage is the GraphiQL IDE page served beside the GraphQL endpoint.
const graphiqlPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>GraphiQL</title>
<style>body { height: 100vh; margin: 0; } #graphiql { height: 100vh; }</style>
<link rel="stylesheet" href="https://unpkg.com/graphiql/graphiql.min.css">
</head>
<body>
<div id="graphiql">Loading&hellip;</div>
<script crossorigin src="https://unpkg.com/react/umd/react.production.min.js"></script>
<script crossorigin src="https://unpkg.com/react-dom/umd/react-dom.production.min.js"></script>
<script crossorigin src="https://unpkg.com/graphiql/graphiql.min.js"></script>
<script>
ReactDOM.render(
	React.createElement(GraphiQL, {
		fetcher: GraphiQL.createFetcher({ url: '/graphql' }),
	}),
	document.getElementById('graphiql'),
);
</script>
</body>
</html>
`

// testerPageHandler returns the handler of GET /.
func testerPageHandler(s *Server) Handler {
	return func(req *Request, res *Response) error {
		return res.WriteHTML(testerPage)
	}
}

// graphiqlPageHandler returns the handler of GET /graphiql.
func graphiqlPageHandler(s *Server) Handler {
	return func(req *Request, res *Response) error {
		return res.WriteHTML(graphiqlPage)
	}
}

// eventHub fans reload notifications out to the connected tester pages.
type eventHub struct {
	mutex sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// newEventHub returns a pointer of a new instance of the `eventHub`.
func newEventHub() *eventHub {
	return &eventHub{
		conns: map[*websocket.Conn]struct{}{},
	}
}

// add registers the conn with the h.
func (h *eventHub) add(conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.conns[conn] = struct{}{}
}

// remove drops the conn from the h.
func (h *eventHub) remove(conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	delete(h.conns, conn)
}

// broadcast sends the event to every connected page. Dead connections are
// dropped along the way.
func (h *eventHub) broadcast(event string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for conn := range h.conns {
		if err := conn.WriteJSON(map[string]string{
			"event": event,
		}); err != nil {
			conn.Close()
			delete(h.conns, conn)
		}
	}
}

// close closes every connection of the h.
func (h *eventHub) close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for conn := range h.conns {
		conn.Close()
		delete(h.conns, conn)
	}
}

// eventsUpgrader upgrades tester connections. The tester page is served by
// this very server, so cross-origin checks stay permissive.
var eventsUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// eventsHandler returns the handler of GET /mock-server/events: a WebSocket
// that emits one message per successful table swap.
func eventsHandler(s *Server) Handler {
	return func(req *Request, res *Response) error {
		conn, err := eventsUpgrader.Upgrade(
			res.HTTPResponseWriter(),
			req.HTTPRequest(),
			nil,
		)
		if err != nil {
			return err
		}

		res.Written = true
		s.events.add(conn)

		go func() {
			defer func() {
				s.events.remove(conn)
				conn.Close()
			}()

			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		return nil
	}
}
