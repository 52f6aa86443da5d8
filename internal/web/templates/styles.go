package templates

const styles = `
body{font-family:system-ui,sans-serif;margin:0;background:#f6f7f9;color:#1f2328}
header{display:flex;align-items:center;gap:1rem;padding:.75rem 1.5rem;background:#fff;border-bottom:1px solid #d0d7de}
header h1{font-size:1.1rem;margin:0;flex:1}
main{padding:1rem 1.5rem}
table{border-collapse:collapse;width:100%;background:#fff}
th,td{border-bottom:1px solid #d0d7de;padding:.35rem .5rem;text-align:left;font-size:.875rem;vertical-align:top}
th .filter{display:block;margin-top:.25rem}
th .filter input,th .filter select{width:100%;box-sizing:border-box;font-size:.75rem}
button,.button{font-size:.8rem;padding:.25rem .6rem;border:1px solid #d0d7de;border-radius:4px;background:#fff;cursor:pointer;text-decoration:none;color:inherit}
button:disabled{opacity:.5;cursor:default}
.alert{border:1px solid #cf222e;background:#ffebe9;padding:.5rem .75rem;border-radius:4px;margin-bottom:1rem}
.alert .code{font-family:monospace;font-size:.75rem}
.bar{display:flex;gap:.75rem;align-items:center;margin:.75rem 0;flex-wrap:wrap}
.muted{color:#656d76;font-size:.8rem}
fieldset{border:1px solid #d0d7de;background:#fff;margin-top:1.5rem}
fieldset label{display:block;margin:.4rem 0;font-size:.85rem}
progress{width:20rem}
`
