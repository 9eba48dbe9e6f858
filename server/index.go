package server

// indexHTML is the viewer page. It talks to the session API only.
const indexHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>EchoColor - Edge Coloring Playback</title>
  <style>
    body {
      font-family: 'Helvetica Neue', Arial, sans-serif;
      margin: 0;
      padding: 20px;
      background: #f5f5f5;
      color: #333;
    }
    .container {
      max-width: 1200px;
      margin: 0 auto;
      background: white;
      padding: 30px;
      border-radius: 8px;
      box-shadow: 0 2px 10px rgba(0,0,0,0.1);
    }
    h1 {
      color: #2a2a2a;
      margin-top: 0;
      border-bottom: 2px solid #eee;
      padding-bottom: 10px;
    }
    .section {
      margin: 20px 0;
      padding: 20px;
      background: #f9f9f9;
      border-radius: 4px;
    }
    .btn {
      background: #4285f4;
      color: white;
      border: none;
      padding: 10px 20px;
      border-radius: 4px;
      cursor: pointer;
      font-size: 16px;
      margin-right: 6px;
    }
    .btn:hover {
      background: #3b78e7;
    }
    .swatch {
      display: inline-block;
      width: 28px;
      height: 28px;
      border: 1px solid #999;
      border-radius: 4px;
      margin-right: 6px;
      cursor: pointer;
    }
    select, input {
      padding: 8px;
      font-size: 16px;
      border: 1px solid #ddd;
      border-radius: 4px;
      margin-right: 10px;
    }
    #view {
      border: 1px solid #ddd;
      background: white;
      min-height: 600px;
    }
  </style>
</head>
<body>
  <div class="container">
    <h1>EchoColor: Edge Coloring Playback</h1>

    <div class="section">
      <h2>Load Graph</h2>
      <input type="file" id="graphFile" accept=".json,.csv">
      <input type="file" id="opsFile" accept=".json,.txt,.ops">
      <button class="btn" onclick="upload()">Load</button>
      <select id="sessions" onchange="select(this.value)"></select>
    </div>

    <div class="section">
      <button class="btn" onclick="command('play')">Play</button>
      <button class="btn" onclick="command('stop')">Stop</button>
      <button class="btn" onclick="command('lock')">Lock</button>
      <button class="btn" onclick="command('save')">Save</button>
      <span id="palette"></span>
      <span id="status"></span>
    </div>

    <div id="view"></div>
  </div>
  <script>
    let current = '';

    function formatOf(name, fallback) {
      const ext = name.split('.').pop().toLowerCase();
      if (ext === 'csv') return 'csv';
      if (ext === 'txt' || ext === 'ops') return 'script';
      return fallback;
    }

    async function upload() {
      const graph = document.getElementById('graphFile').files[0];
      const ops = document.getElementById('opsFile').files[0];
      if (!graph) return;
      let res = await fetch('/api/sessions?format=' + formatOf(graph.name, 'json'), {method: 'POST', body: graph});
      if (!res.ok) { alert(await res.text()); return; }
      const status = await res.json();
      if (ops) {
        res = await fetch('/api/sessions/' + status.id + '/operations?format=' + formatOf(ops.name, 'json'), {method: 'POST', body: ops});
        if (!res.ok) alert(await res.text());
      }
      await refreshSessions();
      select(status.id);
    }

    async function refreshSessions() {
      const res = await fetch('/api/sessions');
      const list = await res.json();
      const el = document.getElementById('sessions');
      el.innerHTML = '';
      for (const s of list) {
        const opt = document.createElement('option');
        opt.value = s.id;
        opt.textContent = s.id.slice(0, 8) + ' (' + s.state + ')';
        el.appendChild(opt);
      }
      el.value = current;
    }

    function select(id) {
      current = id;
      document.getElementById('sessions').value = id;
      refresh();
    }

    async function command(name) {
      if (!current) return;
      const res = await fetch('/api/sessions/' + current + '/' + name, {method: 'POST'});
      if (!res.ok) alert(await res.text());
      refresh();
    }

    async function filter(index) {
      if (!current) return;
      await fetch('/api/sessions/' + current + '/filter?index=' + index, {method: 'POST'});
      refresh();
    }

    async function refresh() {
      if (!current) return;
      const res = await fetch('/api/sessions/' + current);
      if (!res.ok) return;
      const s = await res.json();
      const progress = s.progress === undefined ? '-' : s.progress.toFixed(0) + '%';
      document.getElementById('status').textContent =
        s.state + ' ' + s.cursor + '/' + s.total + ' (' + progress + ') invalid edges: ' +
        s.invalid_edges + (s.locked ? ' locked' : '');
      const palette = document.getElementById('palette');
      palette.innerHTML = '';
      s.palette.forEach((color, i) => {
        const sw = document.createElement('span');
        sw.className = 'swatch';
        sw.style.background = color;
        const used = (s.color_usage && s.color_usage[i]) || 0;
        sw.title = color + ': ' + used + ' links';
        if (i < s.filterable) {
          sw.title += ', click to filter';
          sw.onclick = () => filter(i);
        } else {
          sw.onclick = () => filter(-1);
        }
        palette.appendChild(sw);
      });
      const svg = await fetch('/api/sessions/' + current + '/render?format=svg');
      document.getElementById('view').innerHTML = await svg.text();
    }

    refreshSessions();
    setInterval(refresh, 500);
  </script>
</body>
</html>
`
