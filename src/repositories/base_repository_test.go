package repositories_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"modelrepo/src/domain"
	"modelrepo/src/domain/entities"
	"modelrepo/src/infra/postgres"
	"modelrepo/src/repositories"
	"modelrepo/src/test_artefacts/stubs"
)

var _ = Describe("BaseRepository", func() {
	var (
		ctx        context.Context
		txBeginner *fakeTxBeginner
		mutator    *fakeMutator
		archived   []int64
		archive    repositories.DomainMethod
	)

	BeforeEach(func() {
		ctx = context.Background()
		txBeginner = &fakeTxBeginner{}
		mutator = &fakeMutator{}
		archived = nil
		archive = func(ctx context.Context, args ...any) (any, error) {
			id, err := repositories.IDArg("archive", args, 0)
			if err != nil {
				return nil, err
			}
			archived = append(archived, id)
			return nil, nil
		}
	})

	newRepository := func(opts ...repositories.Option) *repositories.BaseRepository {
		return repositories.NewBaseRepository(txBeginner, mutator, opts...)
	}

	Context("when calling a method that was not registered", func() {
		It("fails with UnknownMethodError without opening a transaction", func() {
			// ARRANGE
			repository := newRepository()

			// ACT
			_, err := repository.Call(ctx, "archive", 1)

			// ASSERT
			var unknown *domain.UnknownMethodError
			Expect(errors.As(err, &unknown)).To(BeTrue())
			Expect(unknown.Method).To(Equal("archive"))
			Expect(err).To(MatchError(domain.ErrUnknownMethod))

			begins, _, _ := txBeginner.counts()
			Expect(begins).To(BeZero())
		})

		It("does not expose the create/update/delete entries through Call", func() {
			// ARRANGE
			repository := newRepository()

			// ACT
			_, err := repository.Call(ctx, repositories.MethodDelete, 1)

			// ASSERT
			Expect(err).To(MatchError(domain.ErrUnknownMethod))
			Expect(repository.HasMethod(repositories.MethodDelete)).To(BeFalse())
		})
	})

	Context("when no transaction methods are listed", func() {
		It("wraps every call in exactly one begin/commit pair", func() {
			// ARRANGE
			repository := newRepository(repositories.WithDomainMethods(map[string]repositories.DomainMethod{"archive": archive}))

			// ACT
			created, err := repository.Create(ctx, stubs.NewModelStub().Get())
			Expect(err).NotTo(HaveOccurred())
			_, err = repository.Update(ctx, created)
			Expect(err).NotTo(HaveOccurred())
			Expect(repository.Delete(ctx, created.GetID())).To(Succeed())
			_, err = repository.Call(ctx, "archive", created.GetID())
			Expect(err).NotTo(HaveOccurred())

			// ASSERT
			begins, commits, rollbacks := txBeginner.counts()
			Expect(begins).To(Equal(4))
			Expect(commits).To(Equal(4))
			Expect(rollbacks).To(BeZero())
			Expect(mutator.inTx).To(Equal([]bool{true, true, true}))
			Expect(archived).To(Equal([]int64{created.GetID()}))
			Expect(repository.TransactionMethods()).To(BeNil())
		})
	})

	Context("when only some methods are listed", func() {
		It("opens no transaction for the others", func() {
			// ARRANGE
			repository := newRepository(
				repositories.WithDomainMethods(map[string]repositories.DomainMethod{"archive": archive}),
				repositories.WithTransactionMethods(repositories.MethodCreate),
			)

			// ACT
			created, err := repository.Create(ctx, stubs.NewModelStub().Get())
			Expect(err).NotTo(HaveOccurred())
			Expect(repository.Delete(ctx, created.GetID())).To(Succeed())
			_, err = repository.Call(ctx, "archive", created.GetID())
			Expect(err).NotTo(HaveOccurred())

			// ASSERT
			begins, commits, _ := txBeginner.counts()
			Expect(begins).To(Equal(1))
			Expect(commits).To(Equal(1))
			Expect(mutator.inTx).To(Equal([]bool{true, false}))
			Expect(repository.WrapsTransaction("archive")).To(BeFalse())
		})
	})

	Context("when editing the transaction method list", func() {
		It("adds a method only once", func() {
			// ARRANGE
			repository := newRepository()

			// ACT
			repository.SetTransactionMethod("archive")
			repository.SetTransactionMethod("archive")

			// ASSERT
			Expect(repository.TransactionMethods()).To(Equal([]string{"archive"}))
		})

		It("goes back to wrapping everything when the last method is removed", func() {
			// ARRANGE
			repository := newRepository(repositories.WithTransactionMethods("archive"))
			Expect(repository.WrapsTransaction(repositories.MethodCreate)).To(BeFalse())

			// ACT
			repository.RemoveTransactionMethod("archive")

			// ASSERT
			Expect(repository.TransactionMethods()).To(BeNil())
			Expect(repository.WrapsTransaction(repositories.MethodCreate)).To(BeTrue())
		})
	})

	Context("when the method fails", func() {
		It("rolls back and returns the error", func() {
			// ARRANGE
			mutator.err = errBoom
			repository := newRepository()

			// ACT
			_, err := repository.Create(ctx, stubs.NewModelStub().Get())

			// ASSERT
			Expect(err).To(MatchError(errBoom))
			begins, commits, rollbacks := txBeginner.counts()
			Expect(begins).To(Equal(1))
			Expect(commits).To(BeZero())
			Expect(rollbacks).To(Equal(1))
		})

		It("joins a rollback failure to the method error", func() {
			// ARRANGE
			mutator.err = errBoom
			rollbackErr := errors.New("connection lost")
			txBeginner.rollbackErr = rollbackErr
			repository := newRepository()

			// ACT
			_, err := repository.Create(ctx, stubs.NewModelStub().Get())

			// ASSERT
			Expect(err).To(MatchError(errBoom))
			Expect(err).To(MatchError(rollbackErr))
		})
	})

	Context("when the method panics", func() {
		It("rolls back and panics again", func() {
			// ARRANGE
			mutator.panicVal = "kaboom"
			repository := newRepository()

			// ACT & ASSERT
			Expect(func() {
				_, _ = repository.Create(ctx, stubs.NewModelStub().Get())
			}).To(PanicWith("kaboom"))

			begins, commits, rollbacks := txBeginner.counts()
			Expect(begins).To(Equal(1))
			Expect(commits).To(BeZero())
			Expect(rollbacks).To(Equal(1))
		})
	})

	Context("when commit fails", func() {
		It("returns the commit error", func() {
			// ARRANGE
			commitErr := errors.New("serialization failure")
			txBeginner.commitErr = commitErr
			repository := newRepository()

			// ACT
			_, err := repository.Create(ctx, stubs.NewModelStub().Get())

			// ASSERT
			Expect(err).To(MatchError(commitErr))
		})
	})

	Context("when begin fails", func() {
		It("does not run the method", func() {
			// ARRANGE
			txBeginner.beginErr = errBoom
			repository := newRepository()

			// ACT
			_, err := repository.Create(ctx, stubs.NewModelStub().Get())

			// ASSERT
			Expect(err).To(MatchError(errBoom))
			Expect(mutator.inTx).To(BeEmpty())
		})
	})

	Context("when a domain method calls back into the repository", func() {
		It("joins the outer transaction instead of nesting", func() {
			// ARRANGE
			var repository *repositories.BaseRepository
			var innerTx bool
			duplicate := func(ctx context.Context, args ...any) (any, error) {
				model, err := repositories.ModelArg("duplicate", args, 0)
				if err != nil {
					return nil, err
				}
				_, innerTx = postgres.TxFrom(ctx)
				return repository.Create(ctx, entities.NewModel(model.Fields()))
			}
			repository = newRepository(repositories.WithDomainMethods(map[string]repositories.DomainMethod{"duplicate": duplicate}))

			// ACT
			_, err := repository.Call(ctx, "duplicate", stubs.NewModelStub().Get())

			// ASSERT
			Expect(err).NotTo(HaveOccurred())
			Expect(innerTx).To(BeTrue())
			begins, commits, _ := txBeginner.counts()
			Expect(begins).To(Equal(1))
			Expect(commits).To(Equal(1))
			Expect(mutator.inTx).To(Equal([]bool{true}))
		})

		It("runs the inner after hooks only once the outer transaction commits", func() {
			// ARRANGE
			var repository *repositories.BaseRepository
			hooks := &settlementInterceptor{txBeginner: txBeginner}
			duplicate := func(ctx context.Context, args ...any) (any, error) {
				return repository.Create(ctx, stubs.NewModelStub().Get())
			}
			repository = newRepository(
				repositories.WithDomainMethods(map[string]repositories.DomainMethod{"duplicate": duplicate}),
				repositories.WithInterceptors(hooks),
			)

			// ACT
			_, err := repository.Call(ctx, "duplicate")

			// ASSERT
			Expect(err).NotTo(HaveOccurred())
			Expect(hooks.views).To(HaveLen(2))
			Expect(hooks.views[0].Method).To(Equal(repositories.MethodCreate))
			Expect(hooks.views[0].Err).NotTo(HaveOccurred())
			Expect(hooks.views[0].Commits).To(Equal(1))
			Expect(hooks.views[1].Method).To(Equal("duplicate"))
		})

		It("reports the inner call as failed when the outer transaction rolls back", func() {
			// ARRANGE
			var repository *repositories.BaseRepository
			hooks := &settlementInterceptor{txBeginner: txBeginner}
			createThenFail := func(ctx context.Context, args ...any) (any, error) {
				if _, err := repository.Create(ctx, stubs.NewModelStub().Get()); err != nil {
					return nil, err
				}
				return nil, errBoom
			}
			repository = newRepository(
				repositories.WithDomainMethods(map[string]repositories.DomainMethod{"createThenFail": createThenFail}),
				repositories.WithInterceptors(hooks),
			)

			// ACT
			_, err := repository.Call(ctx, "createThenFail")

			// ASSERT
			Expect(err).To(MatchError(errBoom))
			begins, commits, rollbacks := txBeginner.counts()
			Expect(begins).To(Equal(1))
			Expect(commits).To(BeZero())
			Expect(rollbacks).To(Equal(1))

			Expect(hooks.views).To(HaveLen(2))
			Expect(hooks.views[0].Method).To(Equal(repositories.MethodCreate))
			Expect(hooks.views[0].Err).To(MatchError(errBoom))
			Expect(hooks.views[0].Rollbacks).To(Equal(1))
			Expect(hooks.views[1].Err).To(MatchError(errBoom))
		})
	})

	Context("when interceptors are configured", func() {
		It("runs before hooks in order and after hooks in reverse order", func() {
			// ARRANGE
			var log []string
			first := &recordingInterceptor{name: "first", log: &log}
			second := &recordingInterceptor{name: "second", log: &log}
			repository := newRepository(repositories.WithInterceptors(first, second))

			// ACT
			_, err := repository.Create(ctx, stubs.NewModelStub().Get())

			// ASSERT
			Expect(err).NotTo(HaveOccurred())
			Expect(log).To(Equal([]string{"first:before", "second:before", "second:after", "first:after"}))
		})

		It("lets a before hook veto the call before any transaction", func() {
			// ARRANGE
			var log []string
			first := &recordingInterceptor{name: "first", log: &log}
			second := &recordingInterceptor{name: "second", log: &log, veto: errBoom}
			third := &recordingInterceptor{name: "third", log: &log}
			repository := newRepository(repositories.WithInterceptors(first, second, third))

			// ACT
			_, err := repository.Create(ctx, stubs.NewModelStub().Get())

			// ASSERT
			Expect(err).To(MatchError(errBoom))
			Expect(log).To(Equal([]string{"first:before", "second:before", "first:after"}))
			Expect(first.seenError).To(MatchError(errBoom))

			begins, _, _ := txBeginner.counts()
			Expect(begins).To(BeZero())
			Expect(mutator.inTx).To(BeEmpty())
		})

		It("runs interceptors added with Use after the configured ones", func() {
			// ARRANGE
			var log []string
			repository := newRepository(repositories.WithInterceptors(&recordingInterceptor{name: "configured", log: &log}))
			repository.Use(&recordingInterceptor{name: "used", log: &log})

			// ACT
			err := repository.Delete(ctx, 1)

			// ASSERT
			Expect(err).NotTo(HaveOccurred())
			Expect(log).To(Equal([]string{"configured:before", "used:before", "used:after", "configured:after"}))
		})

		It("hands the method error to the after hooks", func() {
			// ARRANGE
			var log []string
			interceptor := &recordingInterceptor{name: "only", log: &log}
			mutator.err = errBoom
			repository := newRepository(repositories.WithInterceptors(interceptor))

			// ACT
			_, err := repository.Create(ctx, stubs.NewModelStub().Get())

			// ASSERT
			Expect(err).To(HaveOccurred())
			Expect(interceptor.seenError).To(MatchError(errBoom))
		})
	})

	Context("when listing domain methods", func() {
		It("returns the registered names sorted, without create/update/delete", func() {
			// ARRANGE
			repository := newRepository(repositories.WithDomainMethods(map[string]repositories.DomainMethod{
				"restore": archive,
				"archive": archive,
			}))

			// ACT
			names := repository.DomainMethods()

			// ASSERT
			Expect(names).To(Equal([]string{"archive", "restore"}))
		})
	})

	Context("when arguments have the wrong shape", func() {
		It("fails with ErrInvalidArgument", func() {
			// ARRANGE
			repository := newRepository()

			// ACT
			_, err := repository.Proxy(ctx, repositories.MethodDelete, "not-an-id")

			// ASSERT
			Expect(err).To(MatchError(domain.ErrInvalidArgument))
		})
	})
})
