/*Package proxy 定义了代理转发所需的必备组件.

Layer Definition

一个出站的传输过程由若干层组成, 每一层都是一个 Connector, 通过持有内层 Connector 的方式叠加:

	vmess / http CONNECT
	--------------------
	websocket (可选)
	--------------------
	tls (可选)
	--------------------
	tcp

最内层总是 TCPConnector; 中间的 WrappedConnector 把一个固定的 上游地址 绑定到内层,
这样上面的层只需要说 "连到上游", 不需要知道上游的地址.

入站则由 Acceptor 完成, 它从客户端的 Stream 中读出 目标地址 和 已经读到但需要转发的数据.

Dispatcher 根据规则决定每个目标使用哪个 Connector, 并根据连接结果调整转发 Connector 的权重.
*/
package proxy
