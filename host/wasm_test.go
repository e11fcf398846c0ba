package host

// addModule is a minimal native module exporting
//
//	native_add(a i64, b i64) -> i64
//
// with no memory, allocator or start function.
var addModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, // magic, version
	// type section: (i64, i64) -> i64
	0x01, 0x07, 0x01, 0x60, 0x02, 0x7e, 0x7e, 0x01, 0x7e,
	// function section: func 0 has type 0
	0x03, 0x02, 0x01, 0x00,
	// export section: "native_add" -> func 0
	0x07, 0x0e, 0x01, 0x0a,
	'n', 'a', 't', 'i', 'v', 'e', '_', 'a', 'd', 'd',
	0x00, 0x00,
	// code section: local.get 0, local.get 1, i64.add, end
	0x0a, 0x09, 0x01, 0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x7c, 0x0b,
}

// emptyModule is the smallest valid module.
var emptyModule = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
