package api

const messageDocsHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Message Contract - audiosniff</title>
  <style>
    body {
      margin: 0;
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
      font-size: 14px;
      line-height: 1.65;
      background: #0d1117;
      color: #c9d1d9;
    }
    a { color: #58a6ff; text-decoration: none; }
    nav {
      background: #161b22;
      border-bottom: 1px solid #30363d;
      padding: 10px 24px;
    }
    main { max-width: 860px; margin: 0 auto; padding: 24px; }
    h1 { font-size: 22px; color: #f0f6fc; }
    h2 { font-size: 17px; color: #f0f6fc; border-bottom: 1px solid #21262d; padding-bottom: 6px; margin-top: 32px; }
    code { background: #161b22; padding: 1px 5px; border-radius: 4px; font-size: 13px; }
    pre { background: #161b22; border: 1px solid #30363d; border-radius: 6px; padding: 12px 16px; overflow-x: auto; }
    pre code { padding: 0; }
    table { border-collapse: collapse; width: 100%; }
    th, td { border: 1px solid #30363d; padding: 6px 10px; text-align: left; vertical-align: top; }
    th { background: #161b22; }
  </style>
</head>
<body>
  <nav><a href="/docs">&larr; REST API Docs</a></nav>
  <main>
    <h1>Message Contract</h1>
    <p>
      <code>POST /api/v1/messages</code> accepts one JSON message per request and always
      answers <code>200</code> with the envelope
      <code>{"success": bool, "data": any, "error": string}</code>.
      Failures are reported in <code>error</code>, never as an HTTP status.
    </p>

    <h2>Requests</h2>
    <table>
      <tr><th>type</th><th>fields</th><th>data on success</th></tr>
      <tr><td><code>GET_CAPTURED_MEDIA</code></td><td>none</td><td>array of captured records</td></tr>
      <tr><td><code>DOWNLOAD_MEDIA</code></td><td><code>url</code> (required), <code>filename</code></td><td><code>{"path", "filename"}</code></td></tr>
      <tr><td><code>CLEAR_MEDIA</code></td><td>none</td><td>none</td></tr>
      <tr><td><code>REMOVE_MEDIA</code></td><td><code>id</code> (required)</td><td>none</td></tr>
      <tr><td><code>DOM_AUDIO_FOUND</code></td><td><code>files</code> array of records</td><td><code>{"received", "added"}</code></td></tr>
    </table>
    <p>Any other <code>type</code> fails with <code>Unknown message type</code>.</p>

    <pre><code>curl -s -X POST http://127.0.0.1:8190/api/v1/messages \
  -H 'Content-Type: application/json' \
  -d '{"type":"DOWNLOAD_MEDIA","url":"https://x.test/a/song.mp3"}'</code></pre>

    <h2>Captured record</h2>
    <pre><code>{
  "id": "1000.42_1718000000000",
  "url": "https://x.test/a/b/song.mp3?x=1",
  "filename": "song.mp3",
  "content_type": "audio/mpeg",
  "timestamp": "2024-06-10T06:13:20Z",
  "tab_id": "8F2C...",
  "tab_title": "Unknown",
  "file_size": 348160,
  "source": "webRequest"
}</code></pre>

    <h2>Events</h2>
    <p>
      <code>GET /api/v1/events</code> is a server-sent event stream. Filter with
      <code>?feeds=media_captured,media_removed,media_cleared</code>.
      Slow readers drop events rather than block capture.
    </p>
    <pre><code>const sse = new EventSource('http://127.0.0.1:8190/api/v1/events?feeds=media_captured');
sse.addEventListener('media_captured', (e) => {
  const msg = JSON.parse(e.data);
  console.log(msg.type, msg.media.filename);
});</code></pre>
  </main>
</body>
</html>`
