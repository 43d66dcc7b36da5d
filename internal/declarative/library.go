package declarative

// embeddedLibrary is the fixed utility library resolved under the
// reserved name UtilsFilename. It is intentionally small: a handful of
// constructors for the common Expr/From shapes, so declarative snippets
// can write `u.count()` instead of the raw `{fn: "count", params: ["*"]}`
// object form.
const embeddedLibrary = `
{
  local u = self,

  raw(s):: s,
  count(expr=null):: if expr == null then { fn: "count", params: ["*"] } else { fn: "count", params: [expr] },
  sum(expr):: { fn: "sum", params: [expr] },
  avg(expr):: { fn: "avg", params: [expr] },
  min(expr):: { fn: "min", params: [expr] },
  max(expr):: { fn: "max", params: [expr] },

  eq(a, b):: { op: "=", left: a, right: b },
  neq(a, b):: { op: "<>", left: a, right: b },
  and(a, b):: { op: "AND", left: a, right: b },
  or(a, b):: { op: "OR", left: a, right: b },

  alias(expr, name):: { expr: expr, alias: name },
  table(name, alias=null):: if alias == null then name else { table: name, alias: alias },
}
`
