package pagescan

import (
	"encoding/json"
	"fmt"
)

// BindingName is the page function the change observer calls.
const BindingName = "__audiosniffChanged"

// scanScript returns the DOM scan expression. It yields a JSON string of
// {title, items: [{kind, url, type}]} with URLs deduplicated in page order.
func scanScript(linkPattern string) string {
	pattern, _ := json.Marshal(linkPattern)
	return fmt.Sprintf(`(() => {
  const linkRe = new RegExp(%s, 'i');
  const seen = new Set();
  const items = [];
  const add = (kind, url, type) => {
    if (!url || seen.has(url) || /^(data|blob):/i.test(url)) return;
    seen.add(url);
    items.push({kind: kind, url: url, type: type || 'audio/mpeg'});
  };
  document.querySelectorAll('audio').forEach((el) => {
    add('audio', el.currentSrc || el.src, '');
    el.querySelectorAll('source').forEach((src) => add('source', src.src, src.type));
  });
  document.querySelectorAll('a[href]').forEach((a) => {
    if (linkRe.test(a.href)) add('link', a.href, '');
  });
  return JSON.stringify({title: document.title || '', items: items});
})()`, pattern)
}

// observerScript returns a script that watches the document for added audio
// elements or audio links and calls the binding when one appears. It is safe
// to run more than once per document.
func observerScript(linkPattern string) string {
	pattern, _ := json.Marshal(linkPattern)
	return fmt.Sprintf(`(() => {
  if (window.__audiosniffObserver) return 'present';
  const linkRe = new RegExp(%s, 'i');
  const relevant = (n) => {
    if (n.nodeType !== 1) return false;
    if (n.matches('audio, source')) return true;
    if (n.matches('a[href]') && linkRe.test(n.href)) return true;
    if (n.querySelector('audio')) return true;
    return Array.from(n.querySelectorAll('a[href]')).some((a) => linkRe.test(a.href));
  };
  const notify = () => { try { window[%q]('changed'); } catch (e) {} };
  const obs = new MutationObserver((muts) => {
    for (const m of muts) {
      for (const n of m.addedNodes) {
        if (relevant(n)) { notify(); return; }
      }
    }
  });
  const start = () => obs.observe(document.documentElement, {childList: true, subtree: true});
  if (document.documentElement) start();
  else document.addEventListener('DOMContentLoaded', start, {once: true});
  window.__audiosniffObserver = obs;
  return 'installed';
})()`, pattern, BindingName)
}

type scanItem struct {
	Kind string `json:"kind"`
	URL  string `json:"url"`
	Type string `json:"type"`
}

type scanResult struct {
	Title string     `json:"title"`
	Items []scanItem `json:"items"`
}

func parseScan(raw string) (scanResult, error) {
	var res scanResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return scanResult{}, fmt.Errorf("decode scan result: %w", err)
	}
	return res, nil
}
