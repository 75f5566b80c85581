// internal/browser/js.go
package browser

import (
	"fmt"
	"strconv"

	"github.com/mvoss9k/tabpilot/internal/dom"
)

// jsHelpers is prepended to every snippet that works with element
// descriptors. The locator generator and the visibility predicate mirror
// the HTML backend so both backends address and filter elements the same
// way: id-anchored XPath locators, and a box plus computed-style check.
const jsHelpers = `
const __xp = (el) => {
	const parts = [];
	for (let n = el; n && n.nodeType === 1; n = n.parentElement) {
		const tag = n.nodeName.toLowerCase();
		const id = n.getAttribute('id');
		if (id) { parts.push("//*[@id='" + id + "']"); break; }
		let ix = 1;
		for (let sib = n.previousElementSibling; sib; sib = sib.previousElementSibling) {
			if (sib.nodeName.toLowerCase() === tag) ix++;
		}
		parts.push(tag + '[' + ix + ']');
	}
	if (!parts.length) return '/';
	parts.reverse();
	let path = parts.join('/');
	if (!path.startsWith("//*[@id=")) path = '/' + path;
	return path;
};
const __vis = (el) => {
	const r = el.getBoundingClientRect();
	if (r.width <= 0 || r.height <= 0) return false;
	const cs = getComputedStyle(el);
	return cs.display !== 'none' && cs.visibility !== 'hidden' && Number(cs.opacity) !== 0;
};
const __role = (el) => {
	const explicit = el.getAttribute('role');
	if (explicit) return explicit.toLowerCase();
	const tag = el.nodeName.toLowerCase();
	if (tag === 'a') return el.hasAttribute('href') ? 'link' : '';
	if (tag === 'input') {
		const t = (el.getAttribute('type') || '').toLowerCase();
		if (t === 'button' || t === 'submit' || t === 'reset') return 'button';
		if (t === 'checkbox') return 'checkbox';
		if (t === 'radio') return 'radio';
		return 'textbox';
	}
	return ({button: 'button', option: 'option', select: 'combobox', textarea: 'textbox'})[tag] || '';
};
const __desc = (el) => {
	const attrs = {};
	for (const a of el.attributes) attrs[a.name] = a.value;
	let text = (el.textContent || '').replace(/\s+/g, ' ').trim();
	if (text.length > 500) text = text.slice(0, 500);
	return {tag: el.nodeName.toLowerCase(), text: text, attrs: attrs,
		role: __role(el), visible: __vis(el), locator: __xp(el)};
};
const __find = (xpath) => document.evaluate(xpath, document, null,
	XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
const __inputLike = (el) => {
	const tag = el.nodeName.toLowerCase();
	if (tag === 'textarea' || tag === 'select') return true;
	if (tag === 'input') {
		const t = (el.getAttribute('type') || '').toLowerCase();
		return !(t === 'button' || t === 'submit' || t === 'reset' || t === 'image' || t === 'hidden');
	}
	const ce = el.getAttribute('contenteditable');
	return ce !== null && ce !== 'false';
};
`

// mutationScript installs a coalescing MutationObserver that reports
// through the named CDP binding. Installed on every new document and
// evaluated once on the current one; the window flag keeps it single.
const mutationScript = `(() => {
	if (window.__tabpilotObserved) return;
	window.__tabpilotObserved = true;
	let pending = null;
	const fire = () => {
		pending = null;
		const report = window['` + mutationBinding + `'];
		if (typeof report === 'function') report('mutated');
	};
	const watch = () => {
		if (!document.documentElement) return;
		new MutationObserver(() => {
			if (pending === null) pending = setTimeout(fire, 100);
		}).observe(document.documentElement, {
			childList: true, subtree: true, attributes: true, characterData: true,
		});
	};
	if (document.documentElement) watch();
	else document.addEventListener('DOMContentLoaded', watch);
})();`

// jsStr renders s as a JS string literal. Go quoting is valid JS for the
// strings that reach here (selectors, locators, typed text).
func jsStr(s string) string {
	return strconv.Quote(s)
}

func selectScript(selector string) string {
	return fmt.Sprintf(`(() => {%s
	const out = [];
	let matched;
	try { matched = document.querySelectorAll(%s); } catch (e) { return {error: String(e)}; }
	for (const el of matched) out.push(__desc(el));
	return {elements: out};
})()`, jsHelpers, jsStr(selector))
}

func candidatesScript() string {
	return fmt.Sprintf(`(() => {%s
	const out = [];
	const seen = new Set();
	const res = document.evaluate(%s, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
	for (let i = 0; i < res.snapshotLength; i++) {
		const el = res.snapshotItem(i);
		if (seen.has(el)) continue;
		seen.add(el);
		out.push(__desc(el));
	}
	return {elements: out};
})()`, jsHelpers, jsStr(dom.CandidateXPath))
}

func activeElementScript() string {
	return fmt.Sprintf(`(() => {%s
	const el = document.activeElement;
	if (!el || el === document.body || el === document.documentElement) return {elements: []};
	return {elements: [__desc(el)]};
})()`, jsHelpers)
}

func inputDescendantScript(locator string) string {
	return fmt.Sprintf(`(() => {%s
	const host = __find(%s);
	if (!host) return {elements: []};
	for (const el of host.querySelectorAll('input, textarea, select, [contenteditable]')) {
		if (__inputLike(el)) return {elements: [__desc(el)]};
	}
	return {elements: []};
})()`, jsHelpers, jsStr(locator))
}

const selectionScript = `(window.getSelection ? window.getSelection().toString() : '')`

func hoverScript(locator string) string {
	return fmt.Sprintf(`(() => {%s
	const el = __find(%s);
	if (!el) return false;
	for (const kind of ['mouseenter', 'mouseover']) {
		el.dispatchEvent(new MouseEvent(kind, {bubbles: kind === 'mouseover', cancelable: true}));
	}
	return true;
})()`, jsHelpers, jsStr(locator))
}

func setValueScript(locator, text string, clear bool) string {
	return fmt.Sprintf(`(() => {%s
	const el = __find(%s);
	if (!el) return false;
	el.focus();
	const text = %s;
	const clear = %t;
	if (el.isContentEditable) {
		el.textContent = clear ? text : el.textContent + text;
	} else {
		el.value = clear ? text : (el.value || '') + text;
	}
	el.dispatchEvent(new Event('input', {bubbles: true}));
	el.dispatchEvent(new Event('change', {bubbles: true}));
	return true;
})()`, jsHelpers, jsStr(locator), jsStr(text), clear)
}

func selectOptionScript(locator, value string) string {
	return fmt.Sprintf(`(() => {%s
	const el = __find(%s);
	if (!el || el.nodeName.toLowerCase() !== 'select') return 'no select element';
	const want = %s;
	let match = null;
	for (const opt of el.options) {
		const label = (opt.textContent || '').replace(/\s+/g, ' ').trim();
		if (opt.value === want || label.toLowerCase().includes(want.toLowerCase())) { match = opt; break; }
	}
	if (!match) return 'no option matching ' + JSON.stringify(want);
	el.value = match.value;
	el.dispatchEvent(new Event('change', {bubbles: true}));
	return '';
})()`, jsHelpers, jsStr(locator), jsStr(value))
}

func scrollByScript(dx, dy int) string {
	return fmt.Sprintf(`window.scrollBy(%d, %d)`, dx, dy)
}

func highlightScript(locator string, ms int64) string {
	return fmt.Sprintf(`(() => {%s
	const el = __find(%s);
	if (!el) return false;
	const saved = el.style.outline;
	el.style.outline = '2px solid #4a90d9';
	setTimeout(() => { el.style.outline = saved; }, %d);
	return true;
})()`, jsHelpers, jsStr(locator), ms)
}
