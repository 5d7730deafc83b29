package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gestionobras/internal/app"
	"gestionobras/internal/db"
	"gestionobras/internal/domain"
	"gestionobras/internal/engine"
	"gestionobras/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "obras",
	Short: "Gestión de Obras CLI",
	Long: `Registry of public works: obras, planes de proyecto, riesgos técnicos,
departamentos/localidades and per-obra state history. Records are never
physically deleted; a baja stamps fecha_baja and hides the record from the
active listings. The workspace holds a .obras directory with the SQLite
database and an optional obras.yml config.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("OBRAS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(departamentoCmd())
	rootCmd.AddCommand(localidadCmd())
	rootCmd.AddCommand(estadoCmd())
	rootCmd.AddCommand(rubroCmd())
	rootCmd.AddCommand(planCmd())
	rootCmd.AddCommand(riesgoCmd())
	rootCmd.AddCommand(obraCmd())
	rootCmd.AddCommand(dashboardCmd())
	rootCmd.AddCommand(logCmd())
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ac, err := app.Open(cmd.Context(), viper.GetString("workspace"))
			if err != nil {
				return err
			}
			defer ac.Close()
			if addr == "" {
				addr = ac.Config.Server.Addr
			}
			if basePath == "" {
				basePath = ac.Config.Server.BasePath
			}
			handler, err := server.New(server.Config{Engine: ac.Engine, BasePath: basePath})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Gestión de Obras API on http://%s%s (OpenAPI at %s/openapi.json)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (default from config)")
	return cmd
}

func departamentoCmd() *cobra.Command {
	dep := &cobra.Command{Use: "departamento", Short: "Manage departamentos"}

	var todas bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List departamentos",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListDepartamentos(ctx, todas)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("ID", "Nombre", "Alta", "Baja")
				for _, d := range items {
					tw.AppendRow(table.Row{d.ID, d.Nombre, d.FechaAlta, deref(d.FechaBaja)})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().BoolVar(&todas, "todas", false, "include bajas")
	dep.AddCommand(list)

	dep.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show a departamento",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.GetDepartamento(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	})

	var nombre string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create departamento",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.CrearDepartamento(ctx, nombre)
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	create.Flags().StringVar(&nombre, "nombre", "", "departamento name")
	_ = create.MarkFlagRequired("nombre")
	dep.AddCommand(create)

	var updNombre string
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Rename departamento",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.ActualizarDepartamento(ctx, id, updNombre)
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	update.Flags().StringVar(&updNombre, "nombre", "", "new name")
	_ = update.MarkFlagRequired("nombre")
	dep.AddCommand(update)

	dep.AddCommand(&cobra.Command{
		Use:   "baja <id>",
		Short: "Retire a departamento",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.BajaDepartamento(ctx, id)
			})
		},
	})

	dep.AddCommand(&cobra.Command{
		Use:   "localidades <id>",
		Short: "List active localidades of a departamento",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListLocalidadesPorDepartamento(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	})
	return dep
}

func localidadCmd() *cobra.Command {
	loc := &cobra.Command{Use: "localidad", Short: "Manage localidades"}

	var todas bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List localidades",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListLocalidades(ctx, todas)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("ID", "Nombre", "Departamento", "Baja")
				for _, l := range items {
					depNombre := ""
					if l.Departamento != nil {
						depNombre = l.Departamento.Nombre
					}
					tw.AppendRow(table.Row{l.ID, l.Nombre, depNombre, deref(l.FechaBaja)})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().BoolVar(&todas, "todas", false, "include bajas")
	loc.AddCommand(list)

	loc.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show a localidad",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				l, err := e.GetLocalidad(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(l)
			})
		},
	})

	var nombre string
	var depID int64
	create := &cobra.Command{
		Use:   "create",
		Short: "Create localidad",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				l, err := e.CrearLocalidad(ctx, nombre, depID)
				if err != nil {
					return err
				}
				return printJSONOrTable(l)
			})
		},
	}
	create.Flags().StringVar(&nombre, "nombre", "", "localidad name")
	create.Flags().Int64Var(&depID, "departamento", 0, "departamento id")
	_ = create.MarkFlagRequired("nombre")
	_ = create.MarkFlagRequired("departamento")
	loc.AddCommand(create)

	var updNombre string
	var updDep int64
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Update localidad",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				l, err := e.ActualizarLocalidad(ctx, id, updNombre, updDep)
				if err != nil {
					return err
				}
				return printJSONOrTable(l)
			})
		},
	}
	update.Flags().StringVar(&updNombre, "nombre", "", "new name")
	update.Flags().Int64Var(&updDep, "departamento", 0, "departamento id")
	_ = update.MarkFlagRequired("nombre")
	_ = update.MarkFlagRequired("departamento")
	loc.AddCommand(update)

	loc.AddCommand(&cobra.Command{
		Use:   "baja <id>",
		Short: "Retire a localidad",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.BajaLocalidad(ctx, id)
			})
		},
	})
	return loc
}

func estadoCmd() *cobra.Command {
	est := &cobra.Command{Use: "estado", Short: "Manage estados de obra"}

	var todas bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List estados de obra",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListEstadosObra(ctx, todas)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("ID", "Nombre", "Baja")
				for _, it := range items {
					tw.AppendRow(table.Row{it.ID, it.Nombre, deref(it.FechaBaja)})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().BoolVar(&todas, "todas", false, "include bajas")
	est.AddCommand(list)

	var nombre string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create estado de obra",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				it, err := e.CrearEstadoObra(ctx, nombre)
				if err != nil {
					return err
				}
				return printJSONOrTable(it)
			})
		},
	}
	create.Flags().StringVar(&nombre, "nombre", "", "estado name")
	_ = create.MarkFlagRequired("nombre")
	est.AddCommand(create)

	var updNombre string
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Rename estado de obra",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				it, err := e.ActualizarEstadoObra(ctx, id, updNombre)
				if err != nil {
					return err
				}
				return printJSONOrTable(it)
			})
		},
	}
	update.Flags().StringVar(&updNombre, "nombre", "", "new name")
	_ = update.MarkFlagRequired("nombre")
	est.AddCommand(update)

	est.AddCommand(&cobra.Command{
		Use:   "baja <id>",
		Short: "Retire an estado de obra",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.BajaEstadoObra(ctx, id)
			})
		},
	})
	return est
}

func rubroCmd() *cobra.Command {
	rub := &cobra.Command{Use: "rubro", Short: "Manage rubros"}

	var todas bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List rubros",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListRubros(ctx, todas)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("ID", "Nombre", "Baja")
				for _, it := range items {
					tw.AppendRow(table.Row{it.ID, it.Nombre, deref(it.FechaBaja)})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().BoolVar(&todas, "todas", false, "include bajas")
	rub.AddCommand(list)

	var nombre string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create rubro",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				it, err := e.CrearRubro(ctx, nombre)
				if err != nil {
					return err
				}
				return printJSONOrTable(it)
			})
		},
	}
	create.Flags().StringVar(&nombre, "nombre", "", "rubro name")
	_ = create.MarkFlagRequired("nombre")
	rub.AddCommand(create)

	var updNombre string
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Rename rubro",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				it, err := e.ActualizarRubro(ctx, id, updNombre)
				if err != nil {
					return err
				}
				return printJSONOrTable(it)
			})
		},
	}
	update.Flags().StringVar(&updNombre, "nombre", "", "new name")
	_ = update.MarkFlagRequired("nombre")
	rub.AddCommand(update)

	rub.AddCommand(&cobra.Command{
		Use:   "baja <id>",
		Short: "Retire a rubro",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.BajaRubro(ctx, id)
			})
		},
	})
	return rub
}

func planCmd() *cobra.Command {
	plan := &cobra.Command{Use: "plan", Short: "Manage planes de proyecto"}

	var page, size int
	list := &cobra.Command{
		Use:   "list",
		Short: "List planes (paginated)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.ListPlanes(ctx, page, size)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(p.Items)
				}
				tw := newTable("ID", "Nombre", "Rubro", "Prioridad", "Se ejecuta", "Inversión est.")
				for _, it := range p.Items {
					rubro := ""
					if it.Rubro != nil {
						rubro = it.Rubro.Nombre
					}
					tw.AppendRow(table.Row{it.ID, it.Nombre, rubro, it.Prioridad, it.SeEjecuta, it.InversionEstimada})
				}
				tw.Render()
				fmt.Printf("total: %d\n", p.Total)
				return nil
			})
		},
	}
	list.Flags().IntVar(&page, "page", 0, "page number (0-based)")
	list.Flags().IntVar(&size, "size", 0, "page size")
	plan.AddCommand(list)

	plan.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show a plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.GetPlan(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	})

	var opts engine.PlanOptions
	var prioridad string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Prioridad = domain.Prioridad(prioridad)
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.CrearPlan(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	addPlanFlags(create, &opts, &prioridad)
	_ = create.MarkFlagRequired("nombre")
	_ = create.MarkFlagRequired("rubro")
	plan.AddCommand(create)

	var updOpts engine.PlanOptions
	var updPrioridad string
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Update plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			updOpts.Prioridad = domain.Prioridad(updPrioridad)
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.ActualizarPlan(ctx, id, updOpts)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	addPlanFlags(update, &updOpts, &updPrioridad)
	plan.AddCommand(update)

	plan.AddCommand(&cobra.Command{
		Use:   "baja <id>",
		Short: "Retire a plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.BajaPlan(ctx, id)
			})
		},
	})
	return plan
}

func addPlanFlags(cmd *cobra.Command, opts *engine.PlanOptions, prioridad *string) {
	cmd.Flags().StringVar(&opts.Nombre, "nombre", "", "plan name")
	cmd.Flags().StringVar(&opts.Descripcion, "descripcion", "", "description")
	cmd.Flags().IntVar(&opts.MesesEstudio, "meses-estudio", 0, "study months")
	cmd.Flags().Float64Var(&opts.InversionEstimada, "inversion", 0, "estimated investment")
	cmd.Flags().IntVar(&opts.TiempoEstimado, "tiempo", 0, "estimated time (months)")
	cmd.Flags().StringVar(prioridad, "prioridad", "UNO", "priority (UNO, DOS, TRES, CUATRO)")
	cmd.Flags().Int64Var(&opts.RubroID, "rubro", 0, "rubro id")
}

func riesgoCmd() *cobra.Command {
	rsg := &cobra.Command{Use: "riesgo", Short: "Manage riesgos técnicos"}

	var page, size int
	list := &cobra.Command{
		Use:   "list",
		Short: "List riesgos (paginated)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.ListRiesgos(ctx, page, size)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(p.Items)
				}
				tw := newTable("ID", "Nro", "Naturaleza", "Acciones ejecutadas")
				for _, it := range p.Items {
					tw.AppendRow(table.Row{it.ID, it.NroRiesgo, it.Naturaleza, it.AccionesEjecutadas})
				}
				tw.Render()
				fmt.Printf("total: %d\n", p.Total)
				return nil
			})
		},
	}
	list.Flags().IntVar(&page, "page", 0, "page number (0-based)")
	list.Flags().IntVar(&size, "size", 0, "page size")
	rsg.AddCommand(list)

	rsg.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show a riesgo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rt, err := e.GetRiesgo(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(rt)
			})
		},
	})

	rsg.AddCommand(&cobra.Command{
		Use:   "existe <nro>",
		Short: "Check whether a riesgo number is taken",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nro, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				existe, err := e.ExisteNroRiesgo(ctx, nro)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]bool{"existe": existe})
			})
		},
	})

	var opts engine.RiesgoOptions
	create := &cobra.Command{
		Use:   "create",
		Short: "Create riesgo",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rt, err := e.CrearRiesgo(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(rt)
			})
		},
	}
	addRiesgoFlags(create, &opts)
	_ = create.MarkFlagRequired("nro")
	_ = create.MarkFlagRequired("naturaleza")
	rsg.AddCommand(create)

	var updOpts engine.RiesgoOptions
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Update riesgo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rt, err := e.ActualizarRiesgo(ctx, id, updOpts)
				if err != nil {
					return err
				}
				return printJSONOrTable(rt)
			})
		},
	}
	addRiesgoFlags(update, &updOpts)
	rsg.AddCommand(update)

	rsg.AddCommand(&cobra.Command{
		Use:   "baja <id>",
		Short: "Retire a riesgo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.BajaRiesgo(ctx, id)
			})
		},
	})
	return rsg
}

func addRiesgoFlags(cmd *cobra.Command, opts *engine.RiesgoOptions) {
	cmd.Flags().Int64Var(&opts.NroRiesgo, "nro", 0, "riesgo number")
	cmd.Flags().StringVar(&opts.Naturaleza, "naturaleza", "", "nature of the risk")
	cmd.Flags().StringVar(&opts.PropuestaSolucion, "propuesta", "", "proposed solution")
	cmd.Flags().StringVar(&opts.MedidasMitigacion, "mitigacion", "", "mitigation measures")
	cmd.Flags().StringVar(&opts.AccionesEjecutadas, "acciones", "", "executed actions")
}

func obraCmd() *cobra.Command {
	obra := &cobra.Command{Use: "obra", Short: "Manage obras"}

	var page, size int
	var todas bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List obras (paginated)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.ListObras(ctx, page, size, todas)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(p.Items)
				}
				tw := newTable("ID", "Nro", "Nombre", "Localidad", "Estado", "Inversión", "Baja")
				for _, o := range p.Items {
					loc := ""
					if o.Localidad != nil {
						loc = o.Localidad.Nombre
					}
					estado := ""
					if actual := o.EstadoActual(); actual != nil && actual.EstadoObra != nil {
						estado = actual.EstadoObra.Nombre
					}
					tw.AppendRow(table.Row{o.ID, o.NroObra, o.Nombre, loc, estado, o.InversionFinal, deref(o.FechaBaja)})
				}
				tw.Render()
				fmt.Printf("total: %d\n", p.Total)
				return nil
			})
		},
	}
	list.Flags().IntVar(&page, "page", 0, "page number (0-based)")
	list.Flags().IntVar(&size, "size", 0, "page size")
	list.Flags().BoolVar(&todas, "todas", false, "include bajas")
	obra.AddCommand(list)

	obra.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show an obra with its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := e.GetObra(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	})

	obra.AddCommand(&cobra.Command{
		Use:   "existe <nro>",
		Short: "Check whether an obra number is taken",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nro, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				existe, err := e.ExisteNroObra(ctx, nro)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]bool{"existe": existe})
			})
		},
	})

	var copts engine.ObraCreateOptions
	create := &cobra.Command{
		Use:   "create",
		Short: "Create obra",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := e.CrearObra(ctx, copts)
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
	create.Flags().Int64Var(&copts.NroObra, "nro", 0, "obra number")
	create.Flags().StringVar(&copts.Nombre, "nombre", "", "obra name")
	create.Flags().IntVar(&copts.TiempoEjecucion, "tiempo", 0, "execution time (months)")
	create.Flags().IntVar(&copts.AnioEjecucion, "anio", 0, "execution year")
	create.Flags().StringVar(&copts.FechaInicio, "fecha-inicio", "", "start date (YYYY-MM-DD)")
	create.Flags().StringVar(&copts.FechaFin, "fecha-fin", "", "end date (YYYY-MM-DD)")
	create.Flags().Float64Var(&copts.InversionFinal, "inversion", 0, "final investment")
	create.Flags().Int64Var(&copts.LocalidadID, "localidad", 0, "localidad id")
	create.Flags().Int64Var(&copts.PlanProyectoID, "plan", 0, "plan proyecto id")
	create.Flags().Int64SliceVar(&copts.RiesgoIDs, "riesgos", nil, "riesgo ids")
	_ = create.MarkFlagRequired("nro")
	_ = create.MarkFlagRequired("nombre")
	_ = create.MarkFlagRequired("fecha-inicio")
	_ = create.MarkFlagRequired("localidad")
	obra.AddCommand(create)

	var uNro, uLocalidad, uPlan int64
	var uNombre, uFechaInicio, uFechaFin string
	var uTiempo, uAnio int
	var uInversion float64
	var uRiesgos []int64
	var uSinPlan, uSinFechaFin bool
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Update obra (only the flags you pass change)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var opts engine.ObraUpdateOptions
			if cmd.Flags().Changed("nro") {
				opts.NroObra = domain.Some(uNro)
			}
			if cmd.Flags().Changed("nombre") {
				opts.Nombre = domain.Some(uNombre)
			}
			if cmd.Flags().Changed("tiempo") {
				opts.TiempoEjecucion = domain.Some(uTiempo)
			}
			if cmd.Flags().Changed("anio") {
				opts.AnioEjecucion = domain.Some(uAnio)
			}
			if cmd.Flags().Changed("fecha-inicio") {
				opts.FechaInicio = domain.Some(uFechaInicio)
			}
			if uSinFechaFin {
				opts.FechaFin = domain.Null[string]()
			} else if cmd.Flags().Changed("fecha-fin") {
				opts.FechaFin = domain.Some(uFechaFin)
			}
			if cmd.Flags().Changed("inversion") {
				opts.InversionFinal = domain.Some(uInversion)
			}
			if cmd.Flags().Changed("localidad") {
				opts.LocalidadID = domain.Some(uLocalidad)
			}
			if uSinPlan {
				opts.PlanProyectoID = domain.Null[int64]()
			} else if cmd.Flags().Changed("plan") {
				opts.PlanProyectoID = domain.Some(uPlan)
			}
			if cmd.Flags().Changed("riesgos") {
				opts.RiesgoIDs = domain.Some(uRiesgos)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := e.ActualizarObra(ctx, id, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
	update.Flags().Int64Var(&uNro, "nro", 0, "obra number")
	update.Flags().StringVar(&uNombre, "nombre", "", "obra name")
	update.Flags().IntVar(&uTiempo, "tiempo", 0, "execution time (months)")
	update.Flags().IntVar(&uAnio, "anio", 0, "execution year")
	update.Flags().StringVar(&uFechaInicio, "fecha-inicio", "", "start date")
	update.Flags().StringVar(&uFechaFin, "fecha-fin", "", "end date")
	update.Flags().BoolVar(&uSinFechaFin, "sin-fecha-fin", false, "clear the end date")
	update.Flags().Float64Var(&uInversion, "inversion", 0, "final investment")
	update.Flags().Int64Var(&uLocalidad, "localidad", 0, "localidad id")
	update.Flags().Int64Var(&uPlan, "plan", 0, "plan proyecto id")
	update.Flags().BoolVar(&uSinPlan, "sin-plan", false, "detach the plan")
	update.Flags().Int64SliceVar(&uRiesgos, "riesgos", nil, "replacement riesgo ids")
	obra.AddCommand(update)

	var estadoID int64
	cambiar := &cobra.Command{
		Use:   "estado <id>",
		Short: "Change the obra's estado",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := e.CambiarEstado(ctx, id, estadoID)
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
	cambiar.Flags().Int64Var(&estadoID, "a", 0, "target estado id")
	_ = cambiar.MarkFlagRequired("a")
	obra.AddCommand(cambiar)

	obra.AddCommand(&cobra.Command{
		Use:   "baja <id>",
		Short: "Retire an obra",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.BajaObra(ctx, id)
			})
		},
	})
	return obra
}

func dashboardCmd() *cobra.Command {
	dash := &cobra.Command{Use: "dashboard", Short: "Aggregated indicators"}

	dash.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Headline counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.DashboardStats(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	})

	dash.AddCommand(&cobra.Command{
		Use:   "por-estado",
		Short: "Active obras grouped by current estado",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				g, err := e.ObrasPorEstado(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(g)
				}
				tw := newTable("Estado", "Cantidad")
				for _, row := range g {
					tw.AppendRow(table.Row{row.Estado, row.Cantidad})
				}
				tw.Render()
				return nil
			})
		},
	})

	dash.AddCommand(&cobra.Command{
		Use:   "por-rubro",
		Short: "Investment of active obras grouped by rubro",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				g, err := e.InversionPorRubro(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(g)
				}
				tw := newTable("Rubro", "Inversión", "Obras")
				for _, row := range g {
					tw.AppendRow(table.Row{row.Rubro, row.Inversion, row.Cantidad})
				}
				tw.Render()
				return nil
			})
		},
	})
	return dash
}

func logCmd() *cobra.Command {
	log := &cobra.Command{Use: "log", Short: "Audit trail"}
	var n int
	var entidad string
	var entidadID int64
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Show the latest audit events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListEventos(ctx, n, entidad, entidadID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("TS", "Tipo", "Entidad", "ID", "Payload")
				for _, ev := range items {
					tw.AppendRow(table.Row{ev.TS, ev.Tipo, ev.Entidad, ev.EntidadID, ev.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
	tail.Flags().IntVar(&n, "n", 20, "number of events")
	tail.Flags().StringVar(&entidad, "entidad", "", "entity filter (obra, plan_proyecto, ...)")
	tail.Flags().Int64Var(&entidadID, "entidad-id", 0, "entity id filter")
	log.AddCommand(tail)
	return log
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	ac, err := app.Open(ctx, viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer ac.Close()
	return fn(ctx, ac.Engine)
}

func newTable(cols ...any) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row(cols))
	return tw
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseID(s string) (int64, error) {
	var id int64
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &id); err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
