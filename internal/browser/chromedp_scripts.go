package browser

import (
	"fmt"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/uiprobe/internal/locator"
)

// resolveElementsJS returns every element matching a locator in document order.
// Text matches are the innermost elements whose text satisfies the matcher.
const resolveElementsJS = `function(strategy, query, text) {
	const SKIP = new Set(['SCRIPT', 'STYLE', 'NOSCRIPT', 'TEMPLATE', 'HEAD']);
	const norm = s => (s || '').replace(/\s+/g, ' ').trim();
	if (strategy === 'xpath') {
		const snap = document.evaluate(query, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
		const out = [];
		for (let i = 0; i < snap.snapshotLength; i++) {
			const n = snap.snapshotItem(i);
			if (n.nodeType === Node.ELEMENT_NODE) out.push(n);
		}
		return out;
	}
	if (strategy === 'css') {
		return Array.from(document.querySelectorAll(query));
	}
	let match;
	if (text.mode === 'exact') {
		const want = norm(text.pattern);
		match = s => norm(s) === want;
	} else if (text.mode === 'regex') {
		const re = new RegExp(text.pattern, text.flags);
		match = s => re.test(norm(s));
	} else {
		const needle = norm(text.pattern).toLowerCase();
		match = s => norm(s).toLowerCase().includes(needle);
	}
	const out = [];
	const root = document.body || document.documentElement;
	if (!root) return out;
	const walker = document.createTreeWalker(root, NodeFilter.SHOW_ELEMENT);
	for (let el = walker.nextNode(); el; el = walker.nextNode()) {
		if (SKIP.has(el.tagName) || !match(el.textContent)) continue;
		let inner = false;
		for (const child of el.children) {
			if (!SKIP.has(child.tagName) && match(child.textContent)) { inner = true; break; }
		}
		if (!inner) out.push(el);
	}
	return out;
}`

const probeOpJS = `
	if (!el || !el.isConnected) return {count: count, attached: false};
	const r = el.getBoundingClientRect();
	const st = window.getComputedStyle(el);
	const visible = r.width > 0 && r.height > 0 && st.visibility !== 'hidden' && st.display !== 'none';
	const enabled = !el.matches(':disabled') && el.getAttribute('aria-disabled') !== 'true';
	return {count: count, attached: true, visible: visible, enabled: enabled,
		box: {x: r.x, y: r.y, width: r.width, height: r.height}};`

const clickPointOpJS = `
	if (!el || !el.isConnected) return {attached: false};
	el.scrollIntoView({block: 'center', inline: 'center', behavior: 'instant'});
	const r = el.getBoundingClientRect();
	const x = r.x + r.width / 2, y = r.y + r.height / 2;
	const hit = document.elementFromPoint(x, y);
	return {attached: true, x: x, y: y, receives: !!hit && (hit === el || el.contains(hit))};`

const fillPrepareOpJS = `
	if (!el || !el.isConnected) return {attached: false};
	const tag = el.tagName;
	const nonText = ['checkbox', 'radio', 'file', 'submit', 'button', 'reset', 'image', 'range', 'color', 'hidden'];
	let editable = false;
	if (tag === 'TEXTAREA') editable = true;
	else if (tag === 'INPUT') editable = !nonText.includes((el.type || 'text').toLowerCase());
	else editable = el.isContentEditable;
	if (!editable || el.matches(':disabled') || el.readOnly) return {attached: true, editable: false};
	el.scrollIntoView({block: 'center', inline: 'center', behavior: 'instant'});
	el.focus();
	if (tag === 'INPUT' || tag === 'TEXTAREA') {
		el.value = '';
	} else {
		el.textContent = '';
	}
	el.dispatchEvent(new Event('input', {bubbles: true}));
	return {attached: true, editable: true};`

const fillCommitJS = `(function() {
	const el = document.activeElement;
	if (el) el.dispatchEvent(new Event('change', {bubbles: true}));
	return true;
})()`

const readyStateJS = `document.readyState`

// collectFramesJS flattens frame elements depth first, descending into every
// frame whose document is reachable. Indexes into its result identify frames.
const collectFramesJS = `function collect(doc, out) {
	for (const f of doc.querySelectorAll('iframe, frame')) {
		out.push(f);
		let d = null;
		try { d = f.contentDocument; } catch (e) {}
		if (d) collect(d, out);
	}
	return out;
}`

var listFramesJS = fmt.Sprintf(`(function() {
	const collect = %s;
	return collect(document, []).map((f, i) => {
		let same = false;
		try { same = !!f.contentDocument; } catch (e) {}
		return {index: i, name: f.name || f.id || '', url: f.src || '', sameOrigin: same};
	});
})()`, collectFramesJS)

// textArg is the JSON shape of a text matcher passed to resolveElementsJS.
type textArg struct {
	Mode    string `json:"mode"`
	Pattern string `json:"pattern"`
	Flags   string `json:"flags"`
}

// elementScript wraps op in an expression that resolves loc into `el` (the
// selected match or null) and `count`. A query the page rejects yields {error}.
func elementScript(loc locator.Locator, op string) (string, error) {
	var text textArg
	switch loc.Strategy {
	case locator.XPath, locator.CSS:
	case locator.Text:
		tm, err := locator.ParseTextMatcher(loc.Query)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidLocator, err)
		}
		text = textArg{Mode: string(tm.Mode), Pattern: tm.Pattern, Flags: tm.Flags}
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLocator, loc.Strategy)
	}

	return fmt.Sprintf(`(function() {
	let els;
	try {
		els = (%s)(%s, %s, %s);
	} catch (e) {
		return {error: String((e && e.message) || e)};
	}
	const count = els.length;
	const el = %d < count ? els[%d] : null;
	%s
})()`, resolveElementsJS, jsonEncode(string(loc.Strategy)), jsonEncode(loc.Query), jsonEncode(text), loc.Nth, loc.Nth, op), nil
}

// frameReadyStateScript reports the readyState of the i-th collected frame's
// document, "cross-origin" when it is not reachable, or "detached".
func frameReadyStateScript(index int) string {
	return fmt.Sprintf(`(function(i) {
	const f = (%s)(document, [])[i];
	if (!f) return 'detached';
	let d = null;
	try { d = f.contentDocument; } catch (e) {}
	if (!d) return 'cross-origin';
	return d.readyState;
})(%d)`, collectFramesJS, index)
}

// jsonEncode renders v as a JavaScript literal.
func jsonEncode(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `null`
	}
	return string(b)
}
