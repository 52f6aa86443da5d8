package templates

const script = `
async function post(path, body) {
  const r = await fetch(path, {method: 'POST', headers: {'Content-Type': 'application/json', 'Accept': 'application/json'}, body: JSON.stringify(body || {})});
  if (!r.ok) {
    const e = await r.json().catch(() => ({message: r.statusText}));
    alert(e.message + (e.code ? ' (' + e.code + ')' : ''));
    return;
  }
  location.reload();
}
document.addEventListener('click', (ev) => {
  const el = ev.target.closest('[data-post]');
  if (!el) return;
  ev.preventDefault();
  post(el.dataset.post, el.dataset.body ? JSON.parse(el.dataset.body) : {});
});
document.addEventListener('change', (ev) => {
  const el = ev.target;
  const d = el.dataset;
  if ('filter' in d) return post('/api/table/filter', {column: d.column, value: el.value});
  if ('range' in d) {
    const get = (b) => document.querySelector('[data-range][data-column="' + d.column + '"][data-bound="' + b + '"]').value;
    return post('/api/table/filter', {column: d.column, min: get('min'), max: get('max')});
  }
  if ('columnToggle' in d) return post('/api/table/columns', {column: d.column, visible: el.checked});
  if ('selectRow' in d) return post('/api/table/select', {id: d.id});
  if ('selectPage' in d) return post('/api/table/select-page', {selected: d.selectPage === 'true'});
});
const form = document.getElementById('batch-form');
form.addEventListener('submit', async (ev) => {
  ev.preventDefault();
  const r = await fetch('/api/batches', {method: 'POST', headers: {'Accept': 'application/json'}, body: new FormData(form)});
  const res = await r.json();
  if (!r.ok) {
    const fields = (res.fields || []).map((f) => f.message).join('\n');
    alert(res.message + ' (' + res.code + ')' + (fields ? '\n' + fields : ''));
    return;
  }
  const box = document.getElementById('batch-progress');
  const bar = box.querySelector('progress');
  const label = box.querySelector('span');
  box.hidden = false;
  document.getElementById('batch-cancel').onclick = () => fetch('/api/batches/' + res.id + '/cancel', {method: 'POST'});
  const es = new EventSource('/api/batches/' + res.id + '/progress');
  es.addEventListener('progress', (e) => {
    const p = JSON.parse(e.data);
    bar.max = p.total; bar.value = p.attempted;
    label.textContent = p.attempted + ' / ' + p.total + ' sent, ' + p.failed + ' failed';
  });
  es.addEventListener('done', (e) => {
    es.close();
    const s = JSON.parse(e.data);
    if (s.hasReport) window.location = '/api/batches/' + s.id + '/errors.json';
    setTimeout(() => location.reload(), 500);
  });
});
`
