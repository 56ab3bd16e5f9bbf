// Package shim seeds the virtual file system with minimal browser-safe
// substitutes for Node.js built-in modules that have no native equivalent
// in the browser runtime.
package shim

import "bundlr.dev/bundlr/vfs"

// Names lists every built-in this provider seeds, in mount order.
var Names = []string{
	"events", "stream", "util", "process", "buffer", "assert", "path", "os",
	"url", "querystring", "string_decoder", "timers",
	"fs", "net", "tls", "dns", "crypto", "child_process", "http", "https", "dgram",
}

// source returns the index.js body for a built-in. Built-ins with a real
// browser-safe polyfill get a working implementation; the rest (network,
// filesystem, process-spawning primitives with no browser equivalent) get
// an empty object so `require` succeeds without pretending to function.
func source(name string) string {
	if body, ok := functional[name]; ok {
		return body
	}
	return "module.exports = {};\n"
}

// functional holds the built-ins given a real (if minimal) implementation.
var functional = map[string]string{
	"events": `function EventEmitter() { this._events = {}; }
EventEmitter.prototype.on = function(name, fn) {
  (this._events[name] = this._events[name] || []).push(fn);
  return this;
};
EventEmitter.prototype.once = function(name, fn) {
  var self = this;
  function wrapped() { self.off(name, wrapped); fn.apply(this, arguments); }
  return this.on(name, wrapped);
};
EventEmitter.prototype.off = function(name, fn) {
  var list = this._events[name];
  if (!list) return this;
  var idx = list.indexOf(fn);
  if (idx >= 0) list.splice(idx, 1);
  return this;
};
EventEmitter.prototype.emit = function(name) {
  var list = this._events[name];
  if (!list) return false;
  var args = Array.prototype.slice.call(arguments, 1);
  list.slice().forEach(function(fn) { fn.apply(this, args); });
  return true;
};
module.exports = EventEmitter;
module.exports.EventEmitter = EventEmitter;
`,
	"util": `module.exports = {
  inherits: function(ctor, superCtor) {
    ctor.super_ = superCtor;
    ctor.prototype = Object.create(superCtor.prototype, {
      constructor: { value: ctor, enumerable: false, writable: true, configurable: true }
    });
  },
  inspect: function(obj) { return String(obj); },
  format: function() { return Array.prototype.join.call(arguments, " "); },
  promisify: function(fn) {
    return function() {
      var args = Array.prototype.slice.call(arguments);
      var self = this;
      return new Promise(function(resolve, reject) {
        args.push(function(err, val) { if (err) reject(err); else resolve(val); });
        fn.apply(self, args);
      });
    };
  }
};
`,
	"process": `module.exports = {
  env: {},
  argv: [],
  platform: "browser",
  version: "",
  nextTick: function(fn) { Promise.resolve().then(fn); },
  cwd: function() { return "/"; },
  on: function() { return this; },
  exit: function() {}
};
`,
	"buffer": `function Buffer(input) {
  if (typeof input === "string") return new TextEncoder().encode(input);
  return new Uint8Array(input);
}
Buffer.from = function(input, encoding) {
  if (typeof input === "string") return new TextEncoder().encode(input);
  return new Uint8Array(input);
};
Buffer.isBuffer = function(b) { return b instanceof Uint8Array; };
module.exports = { Buffer: Buffer };
`,
	"assert": `function assert(value, message) {
  if (!value) throw new Error(message || "assertion failed");
}
assert.ok = assert;
assert.equal = function(a, b, message) { if (a != b) throw new Error(message || (a + " != " + b)); };
assert.strictEqual = function(a, b, message) { if (a !== b) throw new Error(message || (a + " !== " + b)); };
module.exports = assert;
`,
	"path": `function normalize(p) {
  var parts = p.split("/");
  var out = [];
  parts.forEach(function(part) {
    if (part === "" || part === ".") return;
    if (part === "..") out.pop(); else out.push(part);
  });
  return (p.charAt(0) === "/" ? "/" : "") + out.join("/");
}
module.exports = {
  sep: "/",
  join: function() { return normalize(Array.prototype.join.call(arguments, "/")); },
  resolve: function() { return normalize(Array.prototype.join.call(arguments, "/")); },
  normalize: normalize,
  dirname: function(p) { var i = p.lastIndexOf("/"); return i <= 0 ? "/" : p.slice(0, i); },
  basename: function(p) { var i = p.lastIndexOf("/"); return i < 0 ? p : p.slice(i + 1); },
  extname: function(p) { var b = p.slice(p.lastIndexOf("/") + 1); var i = b.lastIndexOf("."); return i <= 0 ? "" : b.slice(i); }
};
`,
	"url": `module.exports = {
  parse: function(u) { return new URL(u, "http://localhost/"); },
  URL: URL
};
`,
	"querystring": `module.exports = {
  parse: function(s) {
    var out = {};
    new URLSearchParams(s).forEach(function(v, k) { out[k] = v; });
    return out;
  },
  stringify: function(obj) { return new URLSearchParams(obj).toString(); }
};
`,
	"string_decoder": `function StringDecoder() {}
StringDecoder.prototype.write = function(buf) { return new TextDecoder().decode(buf); };
StringDecoder.prototype.end = function() { return ""; };
module.exports = { StringDecoder: StringDecoder };
`,
	"timers": `module.exports = {
  setTimeout: setTimeout, clearTimeout: clearTimeout,
  setInterval: setInterval, clearInterval: clearInterval
};
`,
}

// packageJSON returns the skeletal package.json for a shim.
func packageJSON(name string) string {
	return `{"name":"` + name + `","version":"0.0.0","main":"index.js"}`
}

// Seed writes every built-in shim into the writable layer of fs under
// /node_modules/<name>/index.js and /node_modules/<name>/package.json.
func Seed(fs *vfs.Stack) {
	for _, name := range Names {
		fs.WriteSync("/node_modules/"+name+"/index.js", []byte(source(name)))
		fs.WriteSync("/node_modules/"+name+"/package.json", []byte(packageJSON(name)))
	}
}

// Resolve maps a require/import specifier to its shim's entry path if it
// names a built-in, honoring both bare ("stream") and "node:"-prefixed
// ("node:stream") forms. The resolver and the linker's require both consult
// this before treating a miss as ModuleNotFound.
func Resolve(specifier string) (path string, ok bool) {
	name := specifier
	if len(specifier) > 5 && specifier[:5] == "node:" {
		name = specifier[5:]
	}
	for _, n := range Names {
		if n == name {
			return "/node_modules/" + n + "/index.js", true
		}
	}
	return "", false
}
