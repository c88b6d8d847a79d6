package config

// DefaultSkipBlocks are blocks of the gene.finance chain whose receipts the
// node never returns.
var DefaultSkipBlocks = []string{
	"0x7221d7eae52d080d5d2a0a298abc3e841d304ac07d84cbfb7216bb0ab0d55b64",
	"0xf4181a6f9ba3aa798941fd8123f4e3eb113d8d342d3091f904b334fb732fc0eb",
	"0x2cab87f82737d76160c28363e6e1e74e5c93f80c6fc62c166d2b11f734666399",
	"0xe2d421c53d31a79ac3075da148dbba5e60ce57966c006dff8e14a09095f755c2",
	"0xf04533d11c9ab7b985dafd49d87d9dfbab61fd0ab73951786764e4f9e797dc62",
	"0x68b1cecd06c518834b85ed403f7e368508a0b271d54b686400614ef411541209",
	"0x39b30c4d72a717b20e6d898246cb1f2648dff45b9ccb045a80cb741d93576811",
	"0x9c92fcb276649a281fdf11bde479160b8c709b2c3e1c9775a57b6c4bf2ac3ad7",
	"0x11e4dcbfd51f1121e37935d5f782ee4a05abd42bcbb556c8e4f0c2fd60af338f",
	"0xf9ecbb6da47aca577cc8113243fd45986aa42fa3508bd4eef7fd2abeb9cc7e36",
	"0x18c39e91ff209a8b9a52ea3d65e33372fbb374bfdb0882b4abb16938f827736c",
	"0xd27e669f4df92fcd85731b99279b2a19dfcfb790b2d1094f850c54ac0d4cff60",
	"0x59151e6796ffd8e35ac44364fa2b3eb33f8ae797c25d32ebb9fc877863f2ab09",
	"0xef5f65458d96d5773a84ce0eb9352c5fdcd8e90ecf39724f99d9dee4c4445ac7",
	"0x3e53af741da2dbc6b53704157f6863de6f0ed42635e4a60983c3862f4574e6a1",
	"0xb98470bf60f8c642a7c633c251bf44ad373ff081e2787201b4bece48239df790",
	"0x669fee540fa536b1cde180798ace2cb3617780b007787978df2e1f9da73736eb",
	"0x1026119560fc6e6c8c4bfabbfbb8a7c0a06f8f90d7a28740c785cbb366804ef4",
	"0x771f6c4820fc9b5c246b7e9a995a78c40ff428fabbdf9fda194fd28ad9d114da",
	"0xd3c3ca7c8d9b20f87d81f33c767cd5033da2292df94870e77d076f273b32e09a",
}

// DefaultSkipTxs are transactions whose receipts the node never returns.
var DefaultSkipTxs = []string{
	"0xa003975aa8ba46c056f0fdb27e5441e421523bdf9b5dd6f575a53470028e5b36",
	"0x26172d8bffb0287ffa86fc31749aa1d3cc3bf2322bd541c07dc5e66c2f847c4d",
	"0x10eba8aad6d55a84b24a3edd81acd0de53d408e4f0f8aeccf3f7289a7df05d13",
	"0x2ab89df29a951c7e75caa4e39f62fc866a7b1c1d90b93401e4ebb975397ec018",
	"0xb4fcce606116a393444b4fbe0cd1ae873df227008454c826cfcfdf0d8f581141",
	"0xb1c05c6ec54633145e30eff53e3a4661c54b4b80b372baa2b9f73ac7635090a5",
	"0x8ee317171a0887d7f6e48d9f90888b3b4ede6a31456171f8a6f2c1eea0866ae0",
	"0x911155ba9f4e91dc3c6c4080a32df4e5caca3b180e8cbb116844a276aa6198dc",
}

// DefaultDecodeSkipTxs are transactions that can never be decoded.
var DefaultDecodeSkipTxs = []string{
	"0xf74deba916d49d4456a7db0721b6095eb2030b8d557ee318bf8dd9f1d606f403",
	"0x3ceb950c044882d191d1b95f9b865cc08cea07b3af72d62db6aa5a3a3dfbb0bd",
}
