// Package moduledef compiles module message catalogues written in CUE.
//
// A catalogue declares, per module, every message name, which role sends it,
// the response it expects and the error codes its response may carry:
//
//	module: graph: {
//		version:     "0.3"
//		coreVersion: "0.3"
//		messages: [
//			{messageName: "getEntity", source: "block", respondedToBy: "getEntityResponse"},
//			{messageName: "getEntityResponse", source: "embedder"},
//		]
//	}
//
// Compiled definitions let module handlers reject registrations and sends
// for messages their module does not declare.
package moduledef
