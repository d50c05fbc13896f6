package widget

import (
	"fmt"
	"strings"
	"text/template"
)

// LoadedFlag is the window property that guards against double injection.
const LoadedFlag = "__CHAT_WIDGET_LOADED__"

type scriptParams struct {
	Flag     string
	ClientID string // JSON-encoded
	PageURL  string // JSON-encoded, may be ""
	APIURL   string // JSON-encoded
	Embedded bool
}

var scriptTemplate = template.Must(template.New("widget").Parse(`(function () {
  if (window.{{.Flag}}) return;
  window.{{.Flag}} = true;
{{if .Embedded}}
  var tag = document.currentScript || document.querySelector('script[data-chatbot-id],script[data-client-id]');
  var CLIENT_ID = (tag && (tag.getAttribute('data-chatbot-id') || tag.getAttribute('data-client-id'))) || 'default';
  var PAGE_URL = (tag && tag.getAttribute('data-website-url')) || window.location.href;
  var API_URL = {{.APIURL}};
{{else}}
  var CLIENT_ID = {{.ClientID}};
  var PAGE_URL = {{.PageURL}} || window.location.href;
  var API_URL = {{.APIURL}};
{{end}}
  var GRADIENT = 'linear-gradient(135deg, #667eea 0%, #764ba2 100%)';
  var messages = [];
  var open = false;
  var busy = false;

  function el(tagName, css, text) {
    var node = document.createElement(tagName);
    if (css) node.style.cssText = css;
    if (text) node.textContent = text;
    return node;
  }

  function mount() {
    var style = el('style');
    style.textContent = '@keyframes chatw-bounce{0%,80%,100%{transform:scale(0)}40%{transform:scale(1)}}';
    document.head && document.head.appendChild(style);

    var root = el('div', 'position:fixed;bottom:20px;right:20px;z-index:2147483647;font-family:-apple-system,BlinkMacSystemFont,"Segoe UI",Roboto,sans-serif;');
    root.id = 'chat-widget-container';

    var toggle = el('button', 'width:60px;height:60px;border-radius:50%;border:none;cursor:pointer;color:#fff;font-size:24px;box-shadow:0 4px 12px rgba(0,0,0,.15);background:' + GRADIENT, '\u{1F4AC}');
    toggle.id = 'chat-toggle-btn';
    toggle.setAttribute('aria-label', 'Open chat');

    var panel = el('div', 'display:none;position:absolute;bottom:80px;right:0;width:380px;max-width:calc(100vw - 40px);height:600px;max-height:calc(100vh - 120px);background:#fff;border-radius:16px;box-shadow:0 8px 32px rgba(0,0,0,.12);flex-direction:column;overflow:hidden;');
    panel.id = 'chat-window';

    var header = el('div', 'color:#fff;padding:16px 20px;display:flex;justify-content:space-between;align-items:center;background:' + GRADIENT);
    header.appendChild(el('strong', 'font-size:16px', 'Chat Assistant'));
    var close = el('button', 'background:transparent;border:none;color:#fff;cursor:pointer;font-size:18px', '×');
    close.setAttribute('aria-label', 'Close chat');
    header.appendChild(close);

    var list = el('div', 'flex:1;overflow-y:auto;padding:16px;background:#f7f9fc;');
    list.id = 'chat-messages';
    list.appendChild(el('div', 'text-align:center;color:#64748b;font-size:14px;padding:12px;', 'Hi! Ask me anything about this website.'));

    var form = el('form', 'display:flex;gap:8px;padding:12px;border-top:1px solid #e2e8f0;');
    form.id = 'chat-form';
    var input = el('input', 'flex:1;padding:10px;border:1px solid #e2e8f0;border-radius:8px;font-size:14px;');
    input.id = 'chat-input';
    input.type = 'text';
    input.maxLength = 1000;
    input.placeholder = 'Type your message...';
    var send = el('button', 'padding:10px 16px;border:none;border-radius:8px;color:#fff;cursor:pointer;background:' + GRADIENT, 'Send');
    send.type = 'submit';
    form.appendChild(input);
    form.appendChild(send);

    panel.appendChild(header);
    panel.appendChild(list);
    panel.appendChild(form);
    root.appendChild(panel);
    root.appendChild(toggle);
    (document.body || document.documentElement).appendChild(root);

    function setOpen(v) {
      open = v;
      panel.style.display = open ? 'flex' : 'none';
      toggle.style.display = open ? 'none' : 'block';
      if (open) input.focus();
    }

    function add(content, role) {
      var row = el('div', 'display:flex;margin-bottom:10px;justify-content:' + (role === 'user' ? 'flex-end' : 'flex-start'));
      var bubble = el('div', 'max-width:80%;padding:10px 14px;border-radius:12px;font-size:14px;line-height:1.5;white-space:pre-wrap;box-shadow:0 2px 8px rgba(0,0,0,.08);' +
        (role === 'user' ? 'color:#fff;background:' + GRADIENT : 'color:#1e293b;background:#fff'), content);
      row.appendChild(bubble);
      list.appendChild(row);
      list.scrollTop = list.scrollHeight;
      messages.push({ role: role, content: content });
    }

    function loading(on) {
      var existing = document.getElementById('chat-loading');
      if (!on) { if (existing) existing.remove(); return; }
      var dots = el('div', 'display:flex;gap:4px;padding:10px 14px;');
      dots.id = 'chat-loading';
      for (var i = 0; i < 3; i++) {
        dots.appendChild(el('span', 'width:8px;height:8px;border-radius:50%;background:#667eea;animation:chatw-bounce 1.4s ' + (i * 0.2) + 's infinite ease-in-out both;'));
      }
      list.appendChild(dots);
      list.scrollTop = list.scrollHeight;
    }

    toggle.addEventListener('click', function () { setOpen(true); });
    close.addEventListener('click', function () { setOpen(false); });

    form.addEventListener('submit', function (e) {
      e.preventDefault();
      var text = input.value.trim();
      if (!text || busy) return;
      input.value = '';
      var history = messages.slice(-20);
      add(text, 'user');
      busy = true;
      loading(true);
      fetch(API_URL + '/api/chat', {
        method: 'POST',
        headers: { 'Content-Type': 'application/json' },
        body: JSON.stringify({ client_id: CLIENT_ID, message: text, url: PAGE_URL, history: history })
      }).then(function (res) {
        if (!res.ok) throw new Error('HTTP ' + res.status);
        return res.json();
      }).then(function (data) {
        add(data.response || 'Sorry, I could not find an answer.', 'assistant');
      }).catch(function () {
        add("I'm sorry, I encountered an error. Please try again.", 'assistant');
      }).then(function () {
        busy = false;
        loading(false);
      });
    });
  }

  if (document.readyState === 'loading') {
    document.addEventListener('DOMContentLoaded', mount);
  } else {
    mount();
  }
})();
`))

func render(p scriptParams) (string, error) {
	var b strings.Builder
	if err := scriptTemplate.Execute(&b, p); err != nil {
		return "", fmt.Errorf("render widget script: %w", err)
	}
	return b.String(), nil
}
