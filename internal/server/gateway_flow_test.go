package server

import (
	"encoding/json"
	"net/url"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/valyala/fasthttp"

	"github.com/edgecomet/pagepurge/internal/adminbar"
	"github.com/edgecomet/pagepurge/internal/common/requestid"
	"github.com/edgecomet/pagepurge/internal/purge"
)

type toolbarResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Nodes []adminbar.Node `json:"nodes"`
	} `json:"data"`
}

func toolbarNodes(resp *fasthttp.Response) []adminbar.Node {
	Expect(resp.StatusCode()).To(Equal(fasthttp.StatusOK))
	var tr toolbarResponse
	Expect(json.Unmarshal(resp.Body(), &tr)).To(Succeed())
	Expect(tr.Success).To(BeTrue())
	return tr.Data.Nodes
}

// hrefPath strips the host so the link can be replayed through the in-memory client
func hrefPath(href string) string {
	u, err := url.Parse(href)
	Expect(err).NotTo(HaveOccurred())
	return u.RequestURI()
}

var _ = Describe("Purge gateway", func() {
	var env *gatewayEnv

	BeforeEach(func() {
		env = newGatewayEnv(nil)
		env.seed("/shop/", "/blog/", "/news/")
	})

	AfterEach(func() {
		env.Close()
	})

	Context("toolbar", func() {
		It("renders nothing for anonymous viewers", func() {
			resp := env.do("/shop/")
			Expect(resp.StatusCode()).To(Equal(fasthttp.StatusOK))
			Expect(string(resp.Body())).To(Equal(`<ul id="page-cache-toolbar"></ul>`))
		})

		It("renders nothing for users without the admin capability", func() {
			nodes := toolbarNodes(env.do("/shop/", withSession(env.editorSession), withHeader("Accept", "application/json")))
			Expect(nodes).To(BeEmpty())
		})

		It("offers a current page purge on the front end", func() {
			nodes := toolbarNodes(env.do("/shop/", withSession(env.adminSession), withHeader("Accept", "application/json")))
			Expect(nodes).To(HaveLen(1))
			Expect(nodes[0].ID).To(Equal(purge.MenuID))
			Expect(nodes[0].Title).To(Equal("Purge Current Page"))
			Expect(nodes[0].Meta.Title).To(Equal("Purge Current Page"))
			Expect(nodes[0].Href).To(HavePrefix("/shop/?"))
			Expect(nodes[0].Href).To(ContainSubstring("urls=current-url"))
			Expect(nodes[0].Href).To(ContainSubstring("action=purge"))
			Expect(nodes[0].Href).To(ContainSubstring("_wpnonce="))
		})

		It("offers a full purge on the dashboard", func() {
			nodes := toolbarNodes(env.do("/wp-admin/", withSession(env.adminSession), withHeader("Accept", "application/json")))
			Expect(nodes).To(HaveLen(1))
			Expect(nodes[0].Title).To(Equal("Purge All Cache"))
			Expect(nodes[0].Href).To(ContainSubstring("urls=all"))
		})

		It("keeps the link on the site for a scheme-relative request target", func() {
			nodes := toolbarNodes(env.do("//evil.example/x", withSession(env.adminSession), withHeader("Accept", "application/json")))
			Expect(nodes).To(HaveLen(1))

			href, err := url.Parse(nodes[0].Href)
			Expect(err).NotTo(HaveOccurred())
			Expect(href.Host).To(BeEmpty())
			Expect(href.Scheme).To(BeEmpty())
			Expect(nodes[0].Href).NotTo(HavePrefix("//"))
			Expect(nodes[0].Href).To(HavePrefix("/"))
		})

		It("localizes the label", func() {
			nodes := toolbarNodes(env.do("/wp-admin/",
				withSession(env.adminSession),
				withHeader("Accept", "application/json"),
				withHeader("Accept-Language", "fr-FR,fr;q=0.9")))
			Expect(nodes[0].Title).To(Equal("Vider tout le cache"))
		})

		It("renders an HTML fragment by default", func() {
			resp := env.do("/shop/", withSession(env.adminSession))
			Expect(string(resp.Header.ContentType())).To(HavePrefix("text/html"))
			Expect(string(resp.Body())).To(ContainSubstring(`<a href="/shop/?`))
			Expect(string(resp.Body())).To(ContainSubstring(`title="Purge Current Page"`))
		})

		It("echoes a sanitized request id", func() {
			resp := env.do("/shop/", withHeader(requestid.HeaderName, "trace<1>"))
			Expect(string(resp.Header.Peek(requestid.HeaderName))).To(Equal("trace1"))
		})
	})

	Context("front-end purge", func() {
		var link string

		BeforeEach(func() {
			nodes := toolbarNodes(env.do("/shop/", withSession(env.adminSession), withHeader("Accept", "application/json")))
			link = hrefPath(nodes[0].Href)
		})

		It("expires only the current page and redirects to the done URL", func() {
			resp := env.do(link, withSession(env.adminSession))

			Expect(resp.StatusCode()).To(Equal(fasthttp.StatusFound))
			Expect(string(resp.Header.Peek(fasthttp.HeaderLocation))).To(Equal("http://example.com/shop/?action=done"))

			Expect(env.lookup("/shop/").IsExpired()).To(BeTrue())
			Expect(env.lookup("/blog/").IsExpired()).To(BeFalse())
		})

		It("does nothing when the done URL is reloaded", func() {
			Expect(env.do(link, withSession(env.adminSession)).StatusCode()).To(Equal(fasthttp.StatusFound))
			env.seed("/shop/")

			for i := 0; i < 3; i++ {
				resp := env.do("/shop/?action=done", withSession(env.adminSession))
				Expect(resp.StatusCode()).To(Equal(fasthttp.StatusOK))
				Expect(resp.Header.Peek(fasthttp.HeaderLocation)).To(BeEmpty())
			}
			Expect(env.lookup("/shop/").IsExpired()).To(BeFalse())
		})

		It("refuses a replayed link", func() {
			Expect(env.do(link, withSession(env.adminSession)).StatusCode()).To(Equal(fasthttp.StatusFound))
			env.seed("/shop/")

			resp := env.do(link, withSession(env.adminSession))
			Expect(resp.StatusCode()).To(Equal(fasthttp.StatusForbidden))
			Expect(resp.Header.Peek(fasthttp.HeaderLocation)).To(BeEmpty())
			Expect(env.lookup("/shop/").IsExpired()).To(BeFalse())
		})

		It("refuses callers without the admin capability", func() {
			for _, opts := range [][]requestOption{nil, {withSession(env.editorSession)}} {
				resp := env.do(link, opts...)
				Expect(resp.StatusCode()).To(Equal(fasthttp.StatusForbidden))
				Expect(string(resp.Body())).To(ContainSubstring("necessary privileges"))
				Expect(resp.Header.Peek(fasthttp.HeaderLocation)).To(BeEmpty())
			}
			Expect(env.lookup("/shop/").IsExpired()).To(BeFalse())
		})

		It("never clears everything from the front end", func() {
			nodes := toolbarNodes(env.do("/wp-admin/", withSession(env.adminSession), withHeader("Accept", "application/json")))
			adminLink, err := url.Parse(nodes[0].Href)
			Expect(err).NotTo(HaveOccurred())

			resp := env.do("/blog/?"+adminLink.RawQuery, withSession(env.adminSession))

			Expect(resp.StatusCode()).To(Equal(fasthttp.StatusFound))
			Expect(env.lookup("/blog/").IsExpired()).To(BeTrue())
			Expect(env.lookup("/shop/")).NotTo(BeNil())
			Expect(env.lookup("/news/").IsExpired()).To(BeFalse())
		})
	})

	Context("dashboard purge", func() {
		It("clears the whole cache and returns to the dashboard", func() {
			nodes := toolbarNodes(env.do("/wp-admin/", withSession(env.adminSession), withHeader("Accept", "application/json")))

			resp := env.do(hrefPath(nodes[0].Href), withSession(env.adminSession))

			Expect(resp.StatusCode()).To(Equal(fasthttp.StatusFound))
			Expect(string(resp.Header.Peek(fasthttp.HeaderLocation))).To(Equal("http://example.com/wp-admin/?action=done"))
			for _, u := range []string{"/shop/", "/blog/", "/news/"} {
				Expect(env.lookup(u)).To(BeNil())
			}
		})
	})

	Context("settings", func() {
		settingsToken := func() string {
			resp := env.do("/wp-admin/options", withSession(env.adminSession))
			Expect(resp.StatusCode()).To(Equal(fasthttp.StatusOK))
			var body struct {
				Data struct {
					Overrides []string `json:"overrides"`
					Token     string   `json:"token"`
				} `json:"data"`
			}
			Expect(json.Unmarshal(resp.Body(), &body)).To(Succeed())
			Expect(body.Data.Overrides).To(Equal([]string{"/", "/news/"}))
			return body.Data.Token
		}

		It("saves sanitized always-purge URLs", func() {
			token := settingsToken()
			form := url.Values{"always_purge_urls": {"blog, <b>/sale</b>"}, "_wpnonce": {token}}

			resp := env.do("/wp-admin/options", withSession(env.adminSession), withForm(form.Encode()))

			Expect(resp.StatusCode()).To(Equal(fasthttp.StatusSeeOther))
			Expect(string(resp.Header.Peek(fasthttp.HeaderLocation))).To(Equal("http://example.com/wp-admin/options?settings-updated=true"))

			raw, err := env.mr.Get("option:always_purge_urls")
			Expect(err).NotTo(HaveOccurred())
			Expect(raw).To(Equal("/blog/,/sale/"))
		})

		It("rejects a form without a valid token", func() {
			form := url.Values{"always_purge_urls": {"/blog/"}, "_wpnonce": {"forged"}}

			resp := env.do("/wp-admin/options", withSession(env.adminSession), withForm(form.Encode()))

			Expect(resp.StatusCode()).To(Equal(fasthttp.StatusForbidden))
			Expect(env.mr.Exists("option:always_purge_urls")).To(BeFalse())
		})

		It("is closed to non-administrators", func() {
			Expect(env.do("/wp-admin/options", withSession(env.editorSession)).StatusCode()).To(Equal(fasthttp.StatusForbidden))
			Expect(env.do("/wp-admin/options", withForm("always_purge_urls=/x/")).StatusCode()).To(Equal(fasthttp.StatusForbidden))
		})

		It("lets a form submission trigger a purge through the body channel", func() {
			token := settingsToken()
			form := url.Values{"action": {"purge"}, "_wpnonce": {token}}

			resp := env.do("/wp-admin/options?action=done", withSession(env.adminSession), withForm(form.Encode()))

			Expect(resp.StatusCode()).To(Equal(fasthttp.StatusFound))
			Expect(env.lookup("/shop/")).To(BeNil())
		})
	})

	It("rejects other methods", func() {
		resp := env.do("/shop/", func(req *fasthttp.Request) { req.Header.SetMethod(fasthttp.MethodDelete) })
		Expect(resp.StatusCode()).To(Equal(fasthttp.StatusMethodNotAllowed))
	})
})

var _ = Describe("Purge gateway with a failing cache engine", func() {
	var env *gatewayEnv

	BeforeEach(func() {
		env = newGatewayEnv(failingEngine{})
	})

	AfterEach(func() {
		env.Close()
	})

	It("does not redirect when invalidation fails", func() {
		nodes := toolbarNodes(env.do("/shop/", withSession(env.adminSession), withHeader("Accept", "application/json")))

		resp := env.do(hrefPath(nodes[0].Href), withSession(env.adminSession))

		Expect(resp.StatusCode()).To(Equal(fasthttp.StatusBadGateway))
		Expect(resp.Header.Peek(fasthttp.HeaderLocation)).To(BeEmpty())
		Expect(strings.Contains(string(resp.Body()), "cache invalidation failed")).To(BeTrue())
	})
})
