package http

import (
	"net/http"
)

// frontendHTML is the embedded HTML for the conversion frontend.
// Mobile-first, responsive design with pure CSS.
const frontendHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Sweeper - Datum Conversion</title>
    <style>
        :root {
            --primary: #2563eb;
            --primary-dark: #1d4ed8;
            --error: #dc2626;
            --bg: #f8fafc;
            --card: #ffffff;
            --text: #1e293b;
            --text-muted: #64748b;
            --border: #e2e8f0;
            --radius: 8px;
            --shadow: 0 1px 3px rgba(0,0,0,0.1);
        }

        * {
            box-sizing: border-box;
            margin: 0;
            padding: 0;
        }

        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            background: var(--bg);
            color: var(--text);
            line-height: 1.5;
            min-height: 100vh;
        }

        .container {
            max-width: 800px;
            margin: 0 auto;
            padding: 1rem;
        }

        header {
            text-align: center;
            padding: 1.5rem 0;
            border-bottom: 1px solid var(--border);
            margin-bottom: 1.5rem;
        }

        header h1 {
            font-size: 1.5rem;
            color: var(--primary);
        }

        header p {
            color: var(--text-muted);
            font-size: 0.875rem;
        }

        .card {
            background: var(--card);
            border-radius: var(--radius);
            box-shadow: var(--shadow);
            padding: 1.25rem;
            margin-bottom: 1rem;
        }

        .card h2 {
            font-size: 1.125rem;
            margin-bottom: 1rem;
        }

        .row {
            display: grid;
            grid-template-columns: 1fr 1fr;
            gap: 0.75rem;
            margin-bottom: 0.75rem;
        }

        label {
            display: block;
            font-size: 0.875rem;
            font-weight: 500;
            margin-bottom: 0.25rem;
        }

        input, select, textarea {
            width: 100%;
            padding: 0.625rem;
            border: 1px solid var(--border);
            border-radius: var(--radius);
            font-size: 1rem;
            font-family: inherit;
        }

        textarea {
            min-height: 8rem;
            font-family: ui-monospace, monospace;
            font-size: 0.875rem;
        }

        button {
            width: 100%;
            padding: 0.75rem;
            background: var(--primary);
            color: #fff;
            border: none;
            border-radius: var(--radius);
            font-size: 1rem;
            cursor: pointer;
        }

        button:hover {
            background: var(--primary-dark);
        }

        .result {
            margin-top: 1rem;
            font-family: ui-monospace, monospace;
            font-size: 0.875rem;
            white-space: pre-wrap;
            word-break: break-all;
        }

        .error {
            color: var(--error);
        }

        footer {
            text-align: center;
            color: var(--text-muted);
            font-size: 0.75rem;
            padding: 1rem 0;
        }

        @media (max-width: 480px) {
            .row {
                grid-template-columns: 1fr;
            }
        }
    </style>
</head>
<body>
    <div class="container">
        <header>
            <h1>Sweeper</h1>
            <p>WGS-84 / GCJ-02 / BD-09 conversion and polygon centroids</p>
        </header>

        <section class="card">
            <h2>Convert point</h2>
            <form id="convertForm">
                <div class="row">
                    <div>
                        <label for="lng">Longitude</label>
                        <input id="lng" type="text" inputmode="decimal" placeholder="e.g. 116.404" required>
                    </div>
                    <div>
                        <label for="lat">Latitude</label>
                        <input id="lat" type="text" inputmode="decimal" placeholder="e.g. 39.915" required>
                    </div>
                </div>
                <div class="row">
                    <div>
                        <label for="from">From</label>
                        <select id="from">
                            <option value="wgs84">WGS-84</option>
                            <option value="gcj02">GCJ-02</option>
                            <option value="bd09">BD-09</option>
                        </select>
                    </div>
                    <div>
                        <label for="to">To</label>
                        <select id="to">
                            <option value="wgs84">WGS-84</option>
                            <option value="gcj02" selected>GCJ-02</option>
                            <option value="bd09">BD-09</option>
                        </select>
                    </div>
                </div>
                <button type="submit">Convert</button>
            </form>
            <div id="convertResult" class="result"></div>
        </section>

        <section class="card">
            <h2>Polygon centroid</h2>
            <form id="centroidForm">
                <label for="coords">Coordinates (one "lng,lat" per line, a JSON array or WKT)</label>
                <textarea id="coords" required></textarea>
                <div class="row" style="margin-top:0.75rem">
                    <div>
                        <label for="datum">Input datum</label>
                        <select id="datum">
                            <option value="wgs84">WGS-84</option>
                            <option value="gcj02">GCJ-02</option>
                            <option value="bd09">BD-09</option>
                        </select>
                    </div>
                    <div>
                        <label for="outputDatum">Output datum</label>
                        <select id="outputDatum">
                            <option value="">Same as input</option>
                            <option value="wgs84">WGS-84</option>
                            <option value="gcj02">GCJ-02</option>
                            <option value="bd09">BD-09</option>
                        </select>
                    </div>
                </div>
                <button type="submit">Compute centroid</button>
            </form>
            <div id="centroidResult" class="result"></div>
        </section>

        <footer>
            <a href="/docs">API documentation</a>
        </footer>
    </div>

    <script>
        (function() {
            function show(el, ok, body) {
                el.className = ok ? 'result' : 'result error';
                el.textContent = ok ? JSON.stringify(body, null, 2) : (body.message || 'Request failed');
            }

            document.getElementById('convertForm').addEventListener('submit', async function(e) {
                e.preventDefault();
                const params = new URLSearchParams({
                    lng: document.getElementById('lng').value.trim(),
                    lat: document.getElementById('lat').value.trim(),
                    from: document.getElementById('from').value,
                    to: document.getElementById('to').value
                });
                const out = document.getElementById('convertResult');
                try {
                    const resp = await fetch('/api/v1/convert?' + params.toString());
                    show(out, resp.ok, await resp.json());
                } catch (err) {
                    show(out, false, {message: err.message});
                }
            });

            document.getElementById('centroidForm').addEventListener('submit', async function(e) {
                e.preventDefault();
                const out = document.getElementById('centroidResult');
                try {
                    const resp = await fetch('/api/v1/centroid', {
                        method: 'POST',
                        headers: {'Content-Type': 'application/json'},
                        body: JSON.stringify({
                            datum: document.getElementById('datum').value,
                            output_datum: document.getElementById('outputDatum').value,
                            coordinates: document.getElementById('coords').value
                        })
                    });
                    show(out, resp.ok, await resp.json());
                } catch (err) {
                    show(out, false, {message: err.message});
                }
            });
        })();
    </script>
</body>
</html>`

// handleFrontend serves the conversion frontend.
func (s *Server) handleFrontend(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(frontendHTML))
}
