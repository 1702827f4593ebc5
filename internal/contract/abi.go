package contract

// ShopAbi is the fixed ABI surface of the deployed shop contract.
const ShopAbi = `[
{"inputs":[],"name":"getAllProducts","outputs":[{"components":[{"internalType":"uint256","name":"id","type":"uint256"},{"internalType":"string","name":"name","type":"string"},{"internalType":"uint256","name":"price","type":"uint256"},{"internalType":"bool","name":"active","type":"bool"},{"internalType":"uint256","name":"totalSold","type":"uint256"}],"internalType":"struct Shop.Product[]","name":"","type":"tuple[]"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"getActiveProducts","outputs":[{"components":[{"internalType":"uint256","name":"id","type":"uint256"},{"internalType":"string","name":"name","type":"string"},{"internalType":"uint256","name":"price","type":"uint256"},{"internalType":"bool","name":"active","type":"bool"},{"internalType":"uint256","name":"totalSold","type":"uint256"}],"internalType":"struct Shop.Product[]","name":"","type":"tuple[]"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"getStats","outputs":[{"internalType":"uint256","name":"totalUsers","type":"uint256"},{"internalType":"uint256","name":"totalPurchases","type":"uint256"},{"internalType":"uint256","name":"totalProducts","type":"uint256"},{"internalType":"uint256","name":"eligibleForDraw","type":"uint256"},{"internalType":"uint256","name":"contractBalance","type":"uint256"},{"internalType":"uint256","name":"totalDraws","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"productCount","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"getContractBalance","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[{"internalType":"uint256","name":"count","type":"uint256"}],"name":"getRecentPurchases","outputs":[{"components":[{"internalType":"uint256","name":"id","type":"uint256"},{"internalType":"uint256","name":"productId","type":"uint256"},{"internalType":"string","name":"productName","type":"string"},{"internalType":"uint256","name":"amount","type":"uint256"},{"internalType":"address","name":"buyer","type":"address"},{"internalType":"address","name":"referrer","type":"address"},{"internalType":"uint256","name":"commission","type":"uint256"},{"internalType":"uint256","name":"timestamp","type":"uint256"}],"internalType":"struct Shop.Purchase[]","name":"","type":"tuple[]"}],"stateMutability":"view","type":"function"},
{"inputs":[{"internalType":"uint256","name":"purchaseId","type":"uint256"}],"name":"getPurchase","outputs":[{"components":[{"internalType":"uint256","name":"id","type":"uint256"},{"internalType":"uint256","name":"productId","type":"uint256"},{"internalType":"string","name":"productName","type":"string"},{"internalType":"uint256","name":"amount","type":"uint256"},{"internalType":"address","name":"buyer","type":"address"},{"internalType":"address","name":"referrer","type":"address"},{"internalType":"uint256","name":"commission","type":"uint256"},{"internalType":"uint256","name":"timestamp","type":"uint256"}],"internalType":"struct Shop.Purchase","name":"","type":"tuple"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"getDrawHistory","outputs":[{"components":[{"internalType":"address","name":"winner","type":"address"},{"internalType":"uint256","name":"prize","type":"uint256"},{"internalType":"uint256","name":"position","type":"uint256"},{"internalType":"uint256","name":"round","type":"uint256"},{"internalType":"uint256","name":"timestamp","type":"uint256"}],"internalType":"struct Shop.DrawWinner[]","name":"","type":"tuple[]"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"getLatestDraw","outputs":[{"components":[{"internalType":"address","name":"winner","type":"address"},{"internalType":"uint256","name":"prize","type":"uint256"},{"internalType":"uint256","name":"position","type":"uint256"},{"internalType":"uint256","name":"round","type":"uint256"},{"internalType":"uint256","name":"timestamp","type":"uint256"}],"internalType":"struct Shop.DrawWinner[]","name":"","type":"tuple[]"}],"stateMutability":"view","type":"function"},
{"inputs":[{"internalType":"address","name":"user","type":"address"}],"name":"getUserPurchases","outputs":[{"internalType":"uint256[]","name":"","type":"uint256[]"}],"stateMutability":"view","type":"function"},
{"inputs":[{"internalType":"address","name":"user","type":"address"}],"name":"getUserInfo","outputs":[{"components":[{"internalType":"address","name":"wallet","type":"address"},{"internalType":"uint256","name":"totalSpent","type":"uint256"},{"internalType":"uint256","name":"totalCommissions","type":"uint256"},{"internalType":"uint256","name":"purchaseCount","type":"uint256"},{"internalType":"bool","name":"eligibleForDraw","type":"bool"},{"internalType":"uint256","name":"lastPurchaseTime","type":"uint256"}],"internalType":"struct Shop.User","name":"","type":"tuple"}],"stateMutability":"view","type":"function"},
{"inputs":[{"internalType":"address","name":"user","type":"address"}],"name":"getReferrer","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"},
{"inputs":[{"internalType":"address","name":"user","type":"address"}],"name":"isEligibleForDraw","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"view","type":"function"},
{"inputs":[{"internalType":"uint256","name":"productId","type":"uint256"}],"name":"purchaseProduct","outputs":[],"stateMutability":"payable","type":"function"},
{"inputs":[{"internalType":"address","name":"referrer","type":"address"}],"name":"registerUser","outputs":[],"stateMutability":"nonpayable","type":"function"},
{"inputs":[{"internalType":"string","name":"name","type":"string"},{"internalType":"uint256","name":"price","type":"uint256"}],"name":"addProduct","outputs":[],"stateMutability":"nonpayable","type":"function"},
{"inputs":[{"internalType":"uint256","name":"productId","type":"uint256"},{"internalType":"string","name":"name","type":"string"},{"internalType":"uint256","name":"price","type":"uint256"},{"internalType":"bool","name":"active","type":"bool"}],"name":"updateProduct","outputs":[],"stateMutability":"nonpayable","type":"function"},
{"inputs":[],"name":"executeLuckyDraw","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`
